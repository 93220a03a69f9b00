package amp

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestActiveOutsideScope(t *testing.T) {
	if Active(context.Background()) {
		t.Fatal("background context should not be in AMP mode")
	}
}

func TestDoActivatesAndClears(t *testing.T) {
	ctx := context.Background()
	var inside context.Context
	err := Do(ctx, func(ctx context.Context) error {
		if !Active(ctx) {
			t.Error("expected AMP mode inside Do")
		}
		inside = ctx
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if Active(ctx) {
		t.Error("parent context must not be in AMP mode")
	}
	if Active(inside) {
		t.Error("scoped context must be cleared after Do returns")
	}
}

func TestDoClearsOnError(t *testing.T) {
	errBoom := errors.New("boom")
	var inside context.Context
	err := Do(context.Background(), func(ctx context.Context) error {
		inside = ctx
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Do returned %v, want %v", err, errBoom)
	}
	if Active(inside) {
		t.Error("scoped context must be cleared after an error")
	}
}

func TestDoClearsOnPanic(t *testing.T) {
	var inside context.Context
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = Do(context.Background(), func(ctx context.Context) error {
			inside = ctx
			panic("boom")
		})
	}()
	if Active(inside) {
		t.Error("scoped context must be cleared after a panic")
	}
}

func TestNestedScopes(t *testing.T) {
	outer, endOuter := Activate(context.Background())
	defer endOuter()

	inner, endInner := Activate(outer)
	if !Active(inner) {
		t.Fatal("inner scope should be active")
	}
	endInner()
	endInner()
	if Active(inner) {
		t.Error("inner scope should be cleared")
	}
	if !Active(outer) {
		t.Error("ending the inner scope must not clear the outer one")
	}
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	failures := make(chan string, 200)

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_ = Do(context.Background(), func(ctx context.Context) error {
				if !Active(ctx) {
					failures <- "AMP request lost its mode"
				}
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			<-start
			ctx := context.Background()
			for j := 0; j < 10; j++ {
				if Active(ctx) {
					failures <- "normal request observed AMP mode"
				}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(failures)
	for f := range failures {
		t.Error(f)
	}
}

func TestPath(t *testing.T) {
	if got := Path(context.Background(), "/blog/"); got != "/blog/" {
		t.Errorf("Path outside scope = %q", got)
	}
	_ = Do(context.Background(), func(ctx context.Context) error {
		if got := Path(ctx, "/blog/"); got != "/amp/blog/" {
			t.Errorf("Path inside scope = %q, want %q", got, "/amp/blog/")
		}
		return nil
	})
}

func TestTemplateName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a/b.html", "a/b_amp.html"},
		{"page.htm", "page_amp.htm"},
		{"blog/blog_page.html", "blog/blog_page_amp.html"},
		{"noext", "noext_amp"},
		{"blog/blog_page_amp.html", "blog/blog_page_amp.html"},
		{"v1.2/page.html", "v1.2/page_amp.html"},
	}
	for _, tt := range tests {
		got := TemplateName(tt.input)
		if got != tt.want {
			t.Errorf("TemplateName(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if again := TemplateName(got); again != got {
			t.Errorf("TemplateName(%q) = %q, not stable on repetition", got, again)
		}
	}
}

func TestTemplateResolver(t *testing.T) {
	tmpl := Template{Name: "blog/blog_page.html"}
	override := Template{Name: "blog/blog_page.html", AMPName: "custom_amp.html"}
	static := Static("blog/blog_index_page.html")

	ctx := context.Background()
	if got := tmpl.ResolveTemplate(ctx); got != "blog/blog_page.html" {
		t.Errorf("normal = %q", got)
	}
	if got := static.ResolveTemplate(ctx); got != "blog/blog_index_page.html" {
		t.Errorf("static normal = %q", got)
	}

	_ = Do(ctx, func(ctx context.Context) error {
		if got := tmpl.ResolveTemplate(ctx); got != "blog/blog_page_amp.html" {
			t.Errorf("amp = %q", got)
		}
		if got := override.ResolveTemplate(ctx); got != "custom_amp.html" {
			t.Errorf("amp override = %q", got)
		}
		if got := static.ResolveTemplate(ctx); got != "blog/blog_index_page.html" {
			t.Errorf("static amp = %q", got)
		}
		return nil
	})

	if !Supports(tmpl) || Supports(static) {
		t.Error("Supports misreports AMP capability")
	}
}
