// utils/keys_test.go
package utils

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		externalID string
		expected   string
	}{
		{
			name:     "plain name unchanged",
			input:    "Quarterly Report.pdf",
			expected: "Quarterly Report.pdf",
		},
		{
			name:     "path separators become dashes",
			input:    "a/b\\c.txt",
			expected: "a-b-c.txt",
		},
		{
			name:     "traversal sequences collapsed",
			input:    "../../etc/passwd",
			expected: "-.-etc-passwd",
		},
		{
			name:     "control characters dropped",
			input:    "file\x00name\t.txt",
			expected: "filename.txt",
		},
		{
			name:     "leading and trailing dots and spaces trimmed",
			input:    "  .hidden. ",
			expected: "hidden",
		},
		{
			name:       "empty name falls back to external id",
			input:      "",
			externalID: "abc123",
			expected:   "file-abc123",
		},
		{
			name:       "name of only dots falls back",
			input:      "...",
			externalID: "f_9",
			expected:   "file-f_9",
		},
		{
			name:       "fallback sanitizes external id separators",
			input:      "",
			externalID: "x/y",
			expected:   "file-x-y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFileName(tt.input, tt.externalID)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q, %q) = %q, want %q", tt.input, tt.externalID, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFileName_NeverEscapesKeyPath(t *testing.T) {
	hostile := []string{
		"../../etc/passwd",
		"..\\..\\windows\\system32",
		"a/../../b",
		"/absolute/path",
	}
	for _, input := range hostile {
		result := SanitizeFileName(input, "ext-1")
		if strings.Contains(result, "/") || strings.Contains(result, "\\") || strings.Contains(result, "..") {
			t.Errorf("SanitizeFileName(%q) = %q still contains a path escape", input, result)
		}
	}
}

func TestSanitizeFileName_LengthBound(t *testing.T) {
	long := strings.Repeat("a", 150) + ".txt"
	result := SanitizeFileName(long, "id")
	if len(result) != maxFileNameLen {
		t.Fatalf("len = %d, want %d", len(result), maxFileNameLen)
	}
	if result != strings.Repeat("a", maxFileNameLen) {
		t.Errorf("unexpected truncation result %q", result)
	}
}

func TestSanitizeFileName_TruncationKeepsValidUTF8(t *testing.T) {
	// 119 ASCII bytes plus one two-byte rune: the cut lands mid-rune and the
	// partial byte must be dropped.
	input := strings.Repeat("a", 119) + "é"
	result := SanitizeFileName(input, "id")
	if result != strings.Repeat("a", 119) {
		t.Errorf("got %q (len %d), want 119 a's", result, len(result))
	}
}

func TestBuildObjectKey_DefaultPrefix(t *testing.T) {
	key := BuildObjectKey(nil, "org-1", "dropbox", "user-1", "file-9", "notes.txt")
	want := "orgs/org-1/dropbox/user-1/file-9/notes.txt"
	if key != want {
		t.Errorf("BuildObjectKey = %q, want %q", key, want)
	}
}

func TestBuildObjectKey_PrefixOverride(t *testing.T) {
	prefix := "acme/files/"
	key := BuildObjectKey(&prefix, "org-1", "dropbox", "user-1", "file-9", "notes.txt")
	want := "acme/files/file-9/notes.txt"
	if key != want {
		t.Errorf("BuildObjectKey = %q, want %q", key, want)
	}
}

func TestBuildObjectKey_BlankPrefixFallsBack(t *testing.T) {
	prefix := "  / "
	key := BuildObjectKey(&prefix, "org-1", "onedrive", "user-1", "f", "a.pdf")
	if !strings.HasPrefix(key, "orgs/org-1/onedrive/user-1/") {
		t.Errorf("blank prefix should fall back to the default, got %q", key)
	}
}

func TestBuildObjectKey_ExternalIDCannotNest(t *testing.T) {
	key := BuildObjectKey(nil, "org-1", "google_drive", "user-1", "a/b", "doc.pdf")
	want := "orgs/org-1/google_drive/user-1/a-b/doc.pdf"
	if key != want {
		t.Errorf("BuildObjectKey = %q, want %q", key, want)
	}
}
