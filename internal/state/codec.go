package state

import (
	"encoding/json"
	"fmt"
	"time"
)

var nowFunc = time.Now

// Encode serializes the whole state as one JSON document keyed by bucket.
func Encode(st *State) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return data, nil
}

// Decode parses a whole-state document. Buckets missing from the document
// keep their defaults; the catalogs bucket is merged key by key.
func Decode(data []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	buckets := make(map[Bucket][]byte, len(raw))
	for _, b := range AllBuckets {
		if v, ok := raw[string(b)]; ok {
			buckets[b] = v
		}
	}
	st, err := DecodeBuckets(buckets)
	if err != nil {
		return nil, err
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &st.Version); err != nil {
			return nil, fmt.Errorf("decoding state version: %w", err)
		}
	}
	return st, nil
}

// EncodeBucket serializes a single bucket of st.
func EncodeBucket(st *State, b Bucket) ([]byte, error) {
	f := st.field(b)
	if f == nil {
		return nil, fmt.Errorf("unknown bucket %q", b)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding bucket %s: %w", b, err)
	}
	return data, nil
}

// DecodeBuckets builds a state from per-bucket JSON values layered over
// Default. A null value leaves the bucket at its default.
func DecodeBuckets(buckets map[Bucket][]byte) (*State, error) {
	st := Default()
	for b, data := range buckets {
		f := st.field(b)
		if f == nil {
			return nil, fmt.Errorf("unknown bucket %q", b)
		}
		if len(data) == 0 || string(data) == "null" {
			continue
		}
		if err := json.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("decoding bucket %s: %w", b, err)
		}
	}
	normalize(st)
	return st, nil
}

// normalize replaces nil collections with empty ones so encodings are stable.
func normalize(st *State) {
	def := Default()
	if st.Items == nil {
		st.Items = def.Items
	}
	if st.Assignments == nil {
		st.Assignments = def.Assignments
	}
	if st.Loans == nil {
		st.Loans = def.Loans
	}
	if st.Tasks == nil {
		st.Tasks = def.Tasks
	}
	if st.Requests == nil {
		st.Requests = def.Requests
	}
	if st.AccessRequests == nil {
		st.AccessRequests = def.AccessRequests
	}
	if st.Users == nil {
		st.Users = def.Users
	}
	if st.Activity == nil {
		st.Activity = def.Activity
	}
	if st.Attributes == nil {
		st.Attributes = def.Attributes
	}
	if st.Sequences == nil {
		st.Sequences = def.Sequences
	}
}
