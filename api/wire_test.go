package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestGetRoundTrip(t *testing.T) {
	req := Request{Get: Path{"hello", "world"}}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t, `{"Get":["hello","world"]}`, string(data))

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, Path{"hello", "world"}, decoded.Get)
}

func TestRequestInsertDecode(t *testing.T) {
	data := []byte(`{"Insert":{"path":["hello"],"value":{"world":"v"}}}`)

	var req Request
	require.NoError(t, json.Unmarshal(data, &req))
	require.NotNil(t, req.Insert)
	require.Equal(t, Path{"hello"}, req.Insert.Path)
	require.JSONEq(t, `{"world":"v"}`, string(req.Insert.Value))
}

func TestRequestUnknownTagRejected(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"Bogus":[]}`), &req)
	require.Error(t, err)
}

func TestResponseValueRoundTrip(t *testing.T) {
	resp, err := NewValueResponse(map[string]string{"world": "v"})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.JSONEq(t, `{"world":"v"}`, string(decoded.Value))
}

func TestResponseErrorRoundTrip(t *testing.T) {
	resp := NewErrorResponse("KeyNotFound")
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"Error":"KeyNotFound"}`, string(data))

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "KeyNotFound", decoded.Error)
}

func TestResponseSubscriptionUpdateRoundTrip(t *testing.T) {
	value := "v"
	resp := NewSubscriptionUpdateResponse([]string{"hello", "world"}, &value)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.SubscriptionUpdate)
	require.Equal(t, Path{"hello", "world"}, decoded.SubscriptionUpdate.Path)
	require.Equal(t, &value, decoded.SubscriptionUpdate.Value)
}

func TestResponseSubscriptionUpdateRemoveHasNilValue(t *testing.T) {
	resp := NewSubscriptionUpdateResponse([]string{"hello", "world"}, nil)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded.SubscriptionUpdate.Value)
}
