/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	"errors"
)

// MetadataError wraps an error with additional string metadata. Rejections
// such as version conflicts use it to carry the current authoritative
// version back to the client.
type MetadataError struct {
	err      error
	metadata map[string]string
}

// Error returns the error message.
func (e MetadataError) Error() string {
	return e.err.Error()
}

// Status returns the error code from the underlying error.
func (e MetadataError) Status() StatusCode {
	return StatusOf(e.err)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e MetadataError) Unwrap() error {
	return e.err
}

// Metadata returns a copy of the metadata associated with the error.
func (e MetadataError) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// WithMetadata wraps an error with additional metadata. If the error already
// carries metadata, the maps are merged with the new values taking
// precedence.
func WithMetadata(err error, metadata map[string]string) error {
	if err == nil {
		return nil
	}
	if len(metadata) == 0 {
		return err
	}

	merged := make(map[string]string)
	for k, v := range Metadata(err) {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}

	if metaErr, ok := err.(MetadataError); ok {
		err = metaErr.err
	}

	return MetadataError{
		err:      err,
		metadata: merged,
	}
}

// Metadata extracts metadata from an error if it has any, or nil.
func Metadata(err error) map[string]string {
	if err == nil {
		return nil
	}

	var metaErr MetadataError
	if errors.As(err, &metaErr) {
		return metaErr.Metadata()
	}

	return nil
}
