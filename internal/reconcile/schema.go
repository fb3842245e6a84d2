package reconcile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed batch.schema.json
var batchSchemaJSON []byte

const batchSchemaURL = "https://listsync.local/schemas/batch.json"

// ErrMalformedBatch wraps every reason a batch body cannot be dispatched.
var ErrMalformedBatch = errors.New("malformed batch")

var (
	batchSchemaOnce sync.Once
	batchSchema     *jsonschema.Schema
	batchSchemaErr  error
)

func compiledBatchSchema() (*jsonschema.Schema, error) {
	batchSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(batchSchemaJSON))
		if err != nil {
			batchSchemaErr = fmt.Errorf("parse batch schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(batchSchemaURL, doc); err != nil {
			batchSchemaErr = fmt.Errorf("add batch schema: %w", err)
			return
		}
		batchSchema, batchSchemaErr = c.Compile(batchSchemaURL)
	})
	return batchSchema, batchSchemaErr
}

// ParseBatch validates a request body against the batch schema and decodes it
// into operations. Any failure is wrapped in ErrMalformedBatch.
func ParseBatch(body []byte) ([]Operation, error) {
	sch, err := compiledBatchSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	ops := []Operation{}
	if err := json.Unmarshal(body, &ops); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	return ops, nil
}
