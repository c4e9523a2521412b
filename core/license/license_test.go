package license

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mitText = `MIT License

Copyright (c) 2024 Example Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		tree     fstest.MapFS
		expectID string
		path     string
	}{
		{
			name:     "mit at root",
			tree:     fstest.MapFS{"LICENSE": {Data: []byte(mitText)}},
			expectID: "MIT",
			path:     "LICENSE",
		},
		{
			name:     "lower case name in docs",
			tree:     fstest.MapFS{"docs/license.md": {Data: []byte(mitText)}},
			expectID: "MIT",
			path:     "docs/license.md",
		},
		{
			name: "no license anywhere",
			tree: fstest.MapFS{
				"README.md":   {Data: []byte("# hello")},
				"src/LICENSE": {Data: []byte(mitText)},
			},
		},
		{
			name: "unrecognizable license text",
			tree: fstest.MapFS{"LICENSE": {Data: []byte("All rights reserved. Do what you want, maybe.")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Detect(tt.tree)
			require.NoError(t, err)
			if tt.expectID == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.expectID, d.ID)
			assert.Equal(t, tt.path, d.Path)
			assert.GreaterOrEqual(t, d.Coverage, MinCoverage)
		})
	}
}

func TestCandidates(t *testing.T) {
	tree := fstest.MapFS{
		"COPYING":            {Data: []byte("x")},
		"LICENSE-APACHE":     {Data: []byte("x")},
		"Licence.txt":        {Data: []byte("x")},
		".github/LICENSE.md": {Data: []byte("x")},
		"legal/license":      {Data: []byte("x")},
		"lib/LICENSE":        {Data: []byte("x")},
		"README.md":          {Data: []byte("x")},
		"licenses/MIT":       {Data: []byte("x")},
	}

	got, err := Candidates(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{
		".github/LICENSE.md",
		"COPYING",
		"LICENSE-APACHE",
		"Licence.txt",
		"legal/license",
	}, got)
}

func TestApproved(t *testing.T) {
	assert.True(t, Approved("MIT"))
	assert.True(t, Approved("Apache-2.0"))
	assert.False(t, Approved("GPL-3.0"))
	assert.False(t, Approved(""))
}

func TestLoadIsIdempotent(t *testing.T) {
	require.NoError(t, Load())
	first := scanner
	require.NoError(t, Load())
	assert.Same(t, first, scanner)
}
