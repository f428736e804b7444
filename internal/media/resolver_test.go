package media

import (
	"slices"
	"testing"
)

func TestURLResolverResolve(t *testing.T) {
	t.Parallel()

	r, err := NewURLResolver("https://cdn.example.com/media/")
	if err != nil {
		t.Fatalf("NewURLResolver() error = %v", err)
	}

	got := r.Resolve([]string{"users/u1/a.png", "/users/u1/b.png", "", "https://img.example.org/c.jpg"})
	want := []string{
		"https://cdn.example.com/media/users/u1/a.png",
		"https://cdn.example.com/media/users/u1/b.png",
		"https://img.example.org/c.jpg",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
}

func TestURLResolverWithoutBase(t *testing.T) {
	t.Parallel()

	r, err := NewURLResolver("")
	if err != nil {
		t.Fatalf("NewURLResolver() error = %v", err)
	}

	got := r.Resolve([]string{"users/u1/a.png", "http://img.example.org/c.jpg"})
	if !slices.Equal(got, []string{"http://img.example.org/c.jpg"}) {
		t.Fatalf("Resolve() = %v, want only absolute url", got)
	}
}

func TestNewURLResolverRejectsRelativeBase(t *testing.T) {
	t.Parallel()

	if _, err := NewURLResolver("cdn/media"); err == nil {
		t.Fatal("expected error for base without scheme")
	}
}
