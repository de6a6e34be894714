package repository

import "testing"

func TestEscapeLike(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cemento gris", "cemento gris"},
		{"100%", `100\%`},
		{"var_nombre", `var\_nombre`},
		{`c:\ruta`, `c:\\ruta`},
		{"%_", `\%\_`},
		{"", ""},
	}

	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
