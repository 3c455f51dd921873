package drive

import "testing"

func TestExtensionForMime(t *testing.T) {
	tests := []struct{ mime, want string }{
		{"application/pdf", "pdf"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx"},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
		{"text/csv", "csv"},
		{"text/plain", "txt"},
		{"application/octet-stream", "txt"},
	}
	for _, tt := range tests {
		if got := ExtensionForMime(tt.mime); got != tt.want {
			t.Fatalf("ExtensionForMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestBuildFolderQuery(t *testing.T) {
	q := buildFolderQuery("folder-1", "")
	if q != "'folder-1' in parents and trashed = false" {
		t.Fatalf("unexpected query: %s", q)
	}

	q = buildFolderQuery("folder-1", "application/pdf")
	want := "'folder-1' in parents and trashed = false and (mimeType = 'application/pdf' or mimeType = 'application/vnd.google-apps.folder')"
	if q != want {
		t.Fatalf("unexpected query: %s", q)
	}
}
