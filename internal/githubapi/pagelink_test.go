package githubapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastPage(t *testing.T) {
	tests := []struct {
		name string
		link string
		want int
	}{
		{
			name: "empty header",
			link: "",
			want: 1,
		},
		{
			name: "malformed header",
			link: "not a link header at all",
			want: 1,
		},
		{
			name: "next and last",
			link: `<https://api.github.com/repositories/1/stargazers?per_page=100&page=2>; rel="next", <https://api.github.com/repositories/1/stargazers?per_page=100&page=42>; rel="last"`,
			want: 42,
		},
		{
			name: "page before per_page in last url",
			link: `<https://api.github.com/repositories/1/stargazers?page=2&per_page=100>; rel="next", <https://api.github.com/repositories/1/stargazers?page=42&per_page=100>; rel="last"`,
			want: 42,
		},
		{
			name: "large page count",
			link: `<https://api.github.com/repositories/1/stargazers?page=2>; rel="next", <https://api.github.com/repositories/1/stargazers?page=2186>; rel="last"`,
			want: 2186,
		},
		{
			name: "no last relation",
			link: `<https://api.github.com/repositories/1/stargazers?page=1>; rel="prev"`,
			want: 1,
		},
		{
			name: "last without next",
			link: `<https://api.github.com/repositories/1/stargazers?page=5>; rel="last"`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastPage(tt.link))
		})
	}
}
