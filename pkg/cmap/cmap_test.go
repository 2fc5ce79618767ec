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

package cmap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cmap.New[string, int]()

		m.Set("a", 1)
		v, exists := m.Get("a")
		assert.True(t, exists)
		assert.Equal(t, 1, v)

		v, exists = m.Get("b")
		assert.False(t, exists)
		assert.Equal(t, 0, v)
	})

	t.Run("upsert", func(t *testing.T) {
		m := cmap.New[string, int]()

		v := m.Upsert("a", func(val int, exists bool) int {
			if exists {
				return val + 1
			}
			return 1
		})
		assert.Equal(t, 1, v)

		v = m.Upsert("a", func(val int, exists bool) int {
			if exists {
				return val + 1
			}
			return 1
		})
		assert.Equal(t, 2, v)
	})

	t.Run("delete", func(t *testing.T) {
		m := cmap.New[string, int]()

		m.Set("a", 1)
		exists := m.Delete("a", func(val int, exists bool) bool {
			assert.Equal(t, 1, val)
			return exists
		})
		assert.True(t, exists)

		_, exists = m.Get("a")
		assert.False(t, exists)
	})

	t.Run("concurrent access", func(t *testing.T) {
		m := cmap.New[int, int]()

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				m.Set(n, n*2)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 100, m.Len())
		v, exists := m.Get(42)
		assert.True(t, exists)
		assert.Equal(t, 84, v)
		assert.Len(t, m.Keys(), 100)
		assert.Len(t, m.Values(), 100)
	})
}
