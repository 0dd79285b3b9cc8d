// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package jsonrpc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidCall is returned for a missing or malformed envelope.
var ErrInvalidCall = errors.New("Invalid RPC Call.")

// DecodeEnvelope converts a parsed request body or payload into an
// RPCRequest.  The method is required.
func DecodeEnvelope(raw map[string]interface{}) (restdata.RPCRequest, error) {
	var env restdata.RPCRequest
	if raw == nil {
		return env, ErrInvalidCall
	}
	config := mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(decodeBytesAsString, decodeStringKeyedMap),
		WeaklyTypedInput: true,
		Result:           &env,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return env, err
	}
	if err = decoder.Decode(raw); err != nil {
		return env, ErrInvalidCall
	}
	if env.Method == "" {
		return env, ErrInvalidCall
	}
	return env, nil
}

// decodeBytesAsString is a mapstructure decode hook that accepts a
// byte slice where a string is expected.
func decodeBytesAsString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() == reflect.String && from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 {
		return string(data.([]uint8)), nil
	}
	return data, nil
}

// decodeStringKeyedMap is a mapstructure decode hook that accepts a
// map with arbitrary keys where a string-keyed one is expected, as
// some decoders produce.
func decodeStringKeyedMap(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Map || to.Kind() != reflect.Map || to.Key().Kind() != reflect.String {
		return data, nil
	}
	objAsMap, ok := data.(map[interface{}]interface{})
	if !ok {
		return data, nil
	}
	result := make(map[string]interface{}, len(objAsMap))
	for key, value := range objAsMap {
		result[fmt.Sprint(key)] = value
	}
	return result, nil
}

// stringParams converts path parameters to strings.
func stringParams(params map[string]interface{}) map[string]string {
	vars := make(map[string]string, len(params))
	for k, v := range params {
		if v != nil {
			vars[k] = fmt.Sprint(v)
		}
	}
	return vars
}
