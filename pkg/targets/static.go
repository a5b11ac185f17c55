// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package targets

import "context"

var _ DocumentProvider = (*Static)(nil)

// Static provides a fixed document
type Static struct {
	*cache
	doc Document
}

// NewStatic creates a provider for the given document.
// The document is normalized and validated on [Static.Load].
func NewStatic(doc Document) *Static {
	return &Static{cache: newCache("static"), doc: doc}
}

// Load validates the document and makes it available
func (s *Static) Load(_ context.Context) error {
	doc := s.doc
	doc.Targets = cloneTargets(s.doc.Targets)
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		s.failed()
		return err
	}
	s.set(doc)
	return nil
}
