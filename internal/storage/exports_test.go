/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func TestExportHistory(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleSequence("Exports"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, ok, err := LatestExport(ctx, ph, "script"); err != nil || ok {
		t.Fatalf("expected no exports yet, ok=%v err=%v", ok, err)
	}
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, f := range []string{"script", "json", "script"} {
		rec := ExportRecord{TS: base.Add(time.Duration(i) * time.Minute), Format: f, Actions: i + 1, Text: f + "-text"}
		if _, err := SaveExport(ctx, ph, rec); err != nil {
			t.Fatalf("SaveExport error: %v", err)
		}
	}
	latest, ok, err := LatestExport(ctx, ph, "script")
	if err != nil || !ok {
		t.Fatalf("LatestExport: ok=%v err=%v", ok, err)
	}
	if latest.Actions != 3 || !latest.TS.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected latest export %+v", latest)
	}
	list, err := ListExports(ctx, ph, 10)
	if err != nil {
		t.Fatalf("ListExports error: %v", err)
	}
	if len(list) != 3 || list[0].Format != "script" || list[1].Format != "json" {
		t.Fatalf("unexpected export list %+v", list)
	}
	removed, err := PruneExports(ctx, ph, 1)
	if err != nil {
		t.Fatalf("PruneExports error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	if _, err := SaveExport(ctx, ph, ExportRecord{}); err == nil {
		t.Fatalf("expected error for missing format")
	}
}
