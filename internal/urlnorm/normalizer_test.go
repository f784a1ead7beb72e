package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "lowercases scheme and host, preserves path case",
			in:   "HTTP://Example.COM/Path?b=2&a=1",
			want: "http://example.com/Path?a=1&b=2",
		},
		{
			name: "drops default port",
			in:   "https://example.com:443/foo",
			want: "https://example.com/foo",
		},
		{
			name: "keeps non-default port",
			in:   "https://example.com:8443/foo",
			want: "https://example.com:8443/foo",
		},
		{
			name: "strips trailing slash except root",
			in:   "https://example.com/foo/",
			want: "https://example.com/foo",
		},
		{
			name: "root path stays as slash",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "collapses duplicate slashes",
			in:   "https://example.com/a//b",
			want: "https://example.com/a/b",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/a#section",
			want: "https://example.com/a",
		},
		{
			name: "strips utm params and sorts remaining",
			in:   "https://example.com/a?utm_source=x&z=1&a=2",
			want: "https://example.com/a?a=2&z=1",
		},
		{
			name: "strips expanded tracking param set and sorts remaining",
			in:   "https://example.com/a?gclsrc=aw&campaign=x&ttclid=y&z=1&a=2",
			want: "https://example.com/a?a=2&z=1",
		},
		{
			name: "strips affiliate/partner/li_fat_id prefixed params",
			in:   "https://example.com/a?affiliate_id=9&partner_ref=8&li_fat_id=7&a=2",
			want: "https://example.com/a?a=2",
		},
		{
			name: "rejects unsupported scheme",
			in:   "mailto:foo@example.com",
			wantErr: true,
		},
		{
			name: "rejects empty host",
			in:   "https:///a",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAreEquivalent(t *testing.T) {
	eq, err := AreEquivalent("https://example.com/a?utm_source=x", "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eq {
		t.Fatalf("expected URLs to be equivalent")
	}
}
