package models

import "fmt"

// ObjectRef identifies a single object in an object store by bucket and key.
// Scheme selects the store ("gs" or "s3").
type ObjectRef struct {
	Scheme string `firestore:"scheme" json:"scheme"`
	Bucket string `firestore:"bucket" json:"bucket"`
	Key    string `firestore:"key" json:"key"`
}

// String renders the reference in scheme://bucket/key form.
func (r ObjectRef) String() string {
	return fmt.Sprintf("%s://%s/%s", r.Scheme, r.Bucket, r.Key)
}

// FileName returns the final path segment of the key.
func (r ObjectRef) FileName() string {
	for i := len(r.Key) - 1; i >= 0; i-- {
		if r.Key[i] == '/' {
			return r.Key[i+1:]
		}
	}
	return r.Key
}
