package images

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFromHTML(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "open graph wins",
			page: `<html><head><meta name="twitter:image" content="/tw.jpg"><meta property="og:image" content="https://cdn.example/og.jpg"></head><body><img src="/first.png"></body></html>`,
			want: "https://cdn.example/og.jpg",
		},
		{
			name: "twitter card",
			page: `<html><head><meta name="twitter:image" content="/tw.jpg"></head><body><img src="/first.png"></body></html>`,
			want: "/tw.jpg",
		},
		{
			name: "first image skipping inline data",
			page: `<body><img src="data:image/gif;base64,R0lGOD"><img src="/soup.png"><img src="/second.png"></body>`,
			want: "/soup.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := imageFromHTML(strings.NewReader(tt.page))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := imageFromHTML(strings.NewReader(`<html><body><p>nothing</p></body></html>`))
	require.ErrorIs(t, err, ErrNoImage)
}

func TestFindImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Tomato Soup" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><img src="/img/tomato-soup.jpg"></body></html>`))
	}))
	t.Cleanup(server.Close)

	f := NewFinder(server.URL+"/search?q=%s", time.Second)
	got, err := f.FindImage(t.Context(), " Tomato Soup ")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/img/tomato-soup.jpg", got)
}

func TestFindImageFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`<html><body><img src="javascript:alert(1)"></body></html>`))
		}
	}))
	t.Cleanup(server.Close)

	f := NewFinder(server.URL+"/search?q=%s", time.Second)
	_, err := f.FindImage(t.Context(), "missing")
	require.Error(t, err)

	_, err = f.FindImage(t.Context(), "script")
	require.ErrorIs(t, err, ErrNoImage)

	_, err = f.FindImage(t.Context(), "  ")
	require.ErrorIs(t, err, ErrNoImage)
}
