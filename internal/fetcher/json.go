package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// EachJSONArray decodes a top-level JSON array one element at a time and calls
// fn for each. Empty input is an empty array. fn errors stop the walk and are
// returned unwrapped.
func EachJSONArray[T any](ctx context.Context, r io.Reader, fn func(T) error) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return closeDelim(dec)
}

// EachJSONObject walks a top-level JSON object in file order, decoding each
// value as T. Unlike unmarshalling into a map, keys keep their order.
func EachJSONObject[T any](ctx context.Context, r io.Reader, fn func(key string, v T) error) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "json: read key")
		}
		key, _ := tok.(string)

		var v T
		if err := dec.Decode(&v); err != nil {
			return eris.Wrapf(err, "json: decode value of %q", key)
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	return closeDelim(dec)
}

// CollectJSONArray decodes a whole top-level JSON array into a slice. Empty
// input yields an empty slice.
func CollectJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	var items []T
	err := EachJSONArray(ctx, r, func(item T) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// expectDelim reads the opening token. io.EOF is returned bare for empty input.
func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return err
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return eris.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}

func closeDelim(dec *json.Decoder) error {
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}
