package locator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLocator() *Locator {
	return New(func(store, key string) string {
		return fmt.Sprintf("http://assets.test/%s/%s", store, key)
	})
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  Kind
		wantStore string
		wantKey   string
	}{
		{
			name:     "absolute http URL",
			raw:      "http://example.com/video.mp4",
			wantKind: KindAbsolute,
		},
		{
			name:     "absolute https URL",
			raw:      "https://example.com/video.mp4",
			wantKind: KindAbsolute,
		},
		{
			name:     "site-absolute path",
			raw:      "/static/intro.mp4",
			wantKind: KindSiteAbsolute,
		},
		{
			name:      "explicit store colon form",
			raw:       "mybucket:clip.mp4",
			wantKind:  KindExplicitStore,
			wantStore: "mybucket",
			wantKey:   "clip.mp4",
		},
		{
			name:      "explicit store scheme form",
			raw:       "store://mybucket/shows/clip.mp4",
			wantKind:  KindExplicitStore,
			wantStore: "mybucket",
			wantKey:   "shows/clip.mp4",
		},
		{
			name:      "implicit store first segment",
			raw:       "mybucket/clip.mp4",
			wantKind:  KindImplicitStore,
			wantStore: "mybucket",
			wantKey:   "clip.mp4",
		},
		{
			name:     "bare key",
			raw:      "clip.mp4",
			wantKind: KindNamespaceRelative,
			wantKey:  "clip.mp4",
		},
		{
			name:     "first segment not a valid store name",
			raw:      "My Shows/clip.mp4",
			wantKind: KindNamespaceRelative,
			wantKey:  "My Shows/clip.mp4",
		},
		{
			name:     "colon form with invalid store falls through",
			raw:      "My Bucket:clip.mp4",
			wantKind: KindNamespaceRelative,
			wantKey:  "My Bucket:clip.mp4",
		},
		{
			name:     "surrounding whitespace is trimmed",
			raw:      "  clip.mp4  ",
			wantKind: KindNamespaceRelative,
			wantKey:  "clip.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRef(tt.raw)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantKind, ref.Kind)
			if tt.wantStore != "" {
				assert.Equal(t, tt.wantStore, ref.Store)
			}
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantKey, ref.Key)
			}
		})
	}
}

func TestParseRefEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := ParseRef(raw)
		if !errors.Is(err, ErrUnresolvable) {
			t.Errorf("ParseRef(%q) error = %v, want ErrUnresolvable", raw, err)
		}
	}
}

func TestResolve(t *testing.T) {
	l := testLocator()

	tests := []struct {
		name      string
		raw       string
		namespace string
		want      string
	}{
		{
			name:      "absolute URL returned unchanged",
			raw:       "https://example.com/video.mp4",
			namespace: "channel-one",
			want:      "https://example.com/video.mp4",
		},
		{
			name:      "site-absolute path returned unchanged",
			raw:       "/static/intro.mp4",
			namespace: "channel-one",
			want:      "/static/intro.mp4",
		},
		{
			name:      "explicit store override",
			raw:       "mybucket:clip.mp4",
			namespace: "channel-one",
			want:      "http://assets.test/mybucket/clip.mp4",
		},
		{
			name:      "implicit store from first segment",
			raw:       "mybucket/clip.mp4",
			namespace: "channel-one",
			want:      "http://assets.test/mybucket/clip.mp4",
		},
		{
			name:      "bare key resolves under namespace",
			raw:       "clip.mp4",
			namespace: "channel-one",
			want:      "http://assets.test/channel-one/clip.mp4",
		},
		{
			name:      "accidental namespace prefix stripped once",
			raw:       "My Channel/clip.mp4",
			namespace: "My Channel",
			want:      "http://assets.test/My Channel/clip.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Resolve(tt.raw, tt.namespace)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEmptyRef(t *testing.T) {
	l := testLocator()

	_, err := l.Resolve("", "channel-one")
	assert.ErrorIs(t, err, ErrUnresolvable)
}
