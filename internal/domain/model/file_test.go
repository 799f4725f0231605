package model

import (
	"strings"
	"testing"
	"time"
)

func TestBuildFileMetadata(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	m := BuildFileMetadata(BuildParams{
		Bucket:      "reports",
		FileName:    "sales.csv",
		Digest:      Digest{Checksum: "388d92cc84de2dddd74e3dfa9d3a8451", Size: 14},
		ContentType: "text/csv",
		Now:         now,
	})

	if m.StorageAddress != "reports/sales.csv" {
		t.Errorf("StorageAddress = %q, ожидался reports/sales.csv", m.StorageAddress)
	}
	if m.Owner != DefaultOwner {
		t.Errorf("Owner = %q, ожидался %q", m.Owner, DefaultOwner)
	}
	if !m.UploadTimestamp.Equal(now) || !m.LastModifiedTimestamp.Equal(now) {
		t.Errorf("timestamps = %v / %v, ожидался %v", m.UploadTimestamp, m.LastModifiedTimestamp, now)
	}

	want := map[string]string{
		"bucket_name":             "reports",
		"storage_address":         "reports/sales.csv",
		"owner":                   "admin",
		"file_name":               "sales.csv",
		"file_size":               "14",
		"upload_timestamp":        "2024-03-15T10:30:00Z",
		"hash_checksum":           "388d92cc84de2dddd74e3dfa9d3a8451",
		"last_modified_timestamp": "2024-03-15T10:30:00Z",
		"content_type":            "text/csv",
	}
	got := m.ObjectMetadata()
	if len(got) != len(want) {
		t.Fatalf("len(ObjectMetadata) = %d, ожидался %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ObjectMetadata[%q] = %q, ожидался %q", k, got[k], v)
		}
	}
}

// TestBuildFileMetadata_Deterministic проверяет, что одинаковые входы дают одинаковую запись.
func TestBuildFileMetadata_Deterministic(t *testing.T) {
	p := BuildParams{
		Bucket:      "b",
		FileName:    "a.json",
		Owner:       "ops",
		Digest:      Digest{Checksum: "abc", Size: 3},
		ContentType: "application/json",
		Now:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
	}
	a, b := BuildFileMetadata(p), BuildFileMetadata(p)
	if *a != *b {
		t.Errorf("результаты различаются: %+v vs %+v", a, b)
	}
	if a.Owner != "ops" {
		t.Errorf("Owner = %q, ожидался ops", a.Owner)
	}
	if a.UploadTimestamp.Location() != time.UTC {
		t.Errorf("UploadTimestamp не в UTC: %v", a.UploadTimestamp)
	}
}

func TestColumns_Validate(t *testing.T) {
	if err := DefaultColumns().Validate(); err != nil {
		t.Fatalf("DefaultColumns().Validate() = %v", err)
	}

	dup := DefaultColumns()
	dup.Owner = dup.FileName
	if err := dup.Validate(); err == nil {
		t.Error("ожидалась ошибка для повторяющегося столбца")
	}

	bad := DefaultColumns()
	bad.ContentType = `content_type"; DROP TABLE x; --`
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "недопустимый") {
		t.Errorf("ожидалась ошибка недопустимого идентификатора, получено %v", err)
	}
}
