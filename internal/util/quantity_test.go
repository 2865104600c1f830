package util

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"2048", 2048, false},
		{"10B", 10, false},
		{"1K", 1024, false},
		{"512M", 512 << 20, false},
		{"512mib", 512 << 20, false},
		{"1G", 1 << 30, false},
		{"1.5G", 3 << 29, false},
		{" 2 GB ", 2 << 30, false},
		{"1T", 1 << 40, false},
		{"abc", 0, true},
		{"5X", 0, true},
		{"-1M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeProjectName(t *testing.T) {
	tests := map[string]string{
		"foo":             "foo",
		"Foo_Bar":         "foo-bar",
		"zope.interface":  "zope-interface",
		"A--B__c..D":      "a-b-c-d",
		" Django-REST ":   "django-rest",
		"already-normal1": "already-normal1",
	}
	for in, want := range tests {
		if got := NormalizeProjectName(in); got != want {
			t.Errorf("NormalizeProjectName(%q) = %q, want %q", in, got, want)
		}
	}
}
