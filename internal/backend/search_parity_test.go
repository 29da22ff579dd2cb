/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"testing"
	"time"

	"cutscenemaker/internal/storage"
)

func searchQuery(text string, kinds []string) storage.SearchQuery {
	return storage.SearchQuery{Text: text, Kinds: kinds}
}

// TestSearchParity_SQLiteVsPG checks that the local index and the library return the same actions.
func TestSearchParity_SQLiteVsPG(t *testing.T) {
	lib := openLibraryForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seq := uniqueSequence(t)
	t.Cleanup(func() { _ = lib.Remove(context.Background(), seq.Name) })
	root := t.TempDir()
	if _, err := storage.InitProject(root, seq); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if err := storage.UpdateIndex(ctx, root, seq); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	if _, err := lib.Publish(ctx, seq, "", "parity"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, q := range []storage.SearchQuery{
		searchQuery("harbor", nil),
		searchQuery("", []string{"fadeOut"}),
		searchQuery("", nil),
	} {
		local, err := storage.Search(ctx, root, q)
		if err != nil {
			t.Fatalf("sqlite search %+v: %v", q, err)
		}
		remote, err := lib.Search(ctx, seq.Name, q)
		if err != nil {
			t.Fatalf("pg search %+v: %v", q, err)
		}
		if len(local) != len(remote) {
			t.Fatalf("result count differs for %+v: sqlite=%d pg=%d", q, len(local), len(remote))
		}
		for i := range local {
			if local[i].ActionID != remote[i].ActionID || local[i].Position != remote[i].Position {
				t.Fatalf("result %d differs for %+v: %+v vs %+v", i, q, local[i], remote[i])
			}
		}
	}
}
