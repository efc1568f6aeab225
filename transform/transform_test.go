package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChain_EmptyChainReturnsSourceUnchanged(t *testing.T) {
	c := NewChain()
	source := map[string]interface{}{"a": 1}
	out, err := c.Execute(context.Background(), source, Context{})
	require.NoError(t, err)
	require.Equal(t, source, out)
}

func TestFieldMapping_RenamesAndPreservesUnmapped(t *testing.T) {
	fm := NewFieldMapping(map[string]string{"customer_id": "customerId"})
	source := map[string]interface{}{"customer_id": "12345", "first_name": "John"}

	out, err := fm.Transform(context.Background(), source, Context{})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"customerId": "12345", "first_name": "John"}, out)
	// original untouched
	require.Equal(t, "12345", source["customer_id"])
}

func TestFieldMapping_RoundTrip(t *testing.T) {
	fm := NewFieldMapping(map[string]string{
		"customer_id": "customerId",
		"first_name":  "firstName",
	})
	inv := fm.Inverse()
	chain := NewChain(fm, inv)

	source := map[string]interface{}{"customer_id": "1", "first_name": "Jo", "email": "a@b.com"}
	out, err := chain.Execute(context.Background(), source, Context{})
	require.NoError(t, err)
	require.Equal(t, source, out)
}

func TestComputedField_OverwritesExisting(t *testing.T) {
	cf := NewComputedField("fullName", func(value map[string]interface{}) (interface{}, error) {
		return value["first"].(string) + " " + value["last"].(string), nil
	})
	source := map[string]interface{}{"first": "John", "last": "Doe", "fullName": "stale"}
	out, err := cf.Transform(context.Background(), source, Context{})
	require.NoError(t, err)
	require.Equal(t, "John Doe", out["fullName"])
}

func TestJobCollectionMapperScenario(t *testing.T) {
	// spec.md S6: rename raw job output to the target DTO shape.
	fm := NewFieldMapping(map[string]string{
		"customer_id":   "customerId",
		"first_name":    "firstName",
		"last_name":     "lastName",
		"email_address": "email",
	})
	raw := map[string]interface{}{
		"customer_id":   "12345",
		"first_name":    "John",
		"last_name":     "Doe",
		"email_address": "john@example.com",
	}
	out, err := fm.Transform(context.Background(), raw, Context{})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"customerId": "12345",
		"firstName":  "John",
		"lastName":   "Doe",
		"email":      "john@example.com",
	}, out)
}
