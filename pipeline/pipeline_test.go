package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

func TestRunInOrder(t *testing.T) {
	var order []string
	step := func(name string, in, out []string) Step {
		return Step{Name: name, Inputs: in, Outputs: out, Func: func(_ context.Context, c *Catalog) error {
			order = append(order, name)
			for _, o := range out {
				c.Put(o, name)
			}
			return nil
		}}
	}

	c := NewCatalog(nil)
	c.Put("raw", "x")
	p := New("demo",
		step("a", []string{"raw"}, []string{"clean"}),
		step("b", []string{"clean"}, []string{"model"}),
		step("c", []string{"model", "clean"}, nil),
	)
	require.NoError(t, p.Run(context.Background(), c))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, p.StepNames())

	v, ok := Value[string](c, "model")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = Value[int](c, "model")
	assert.False(t, ok)
}

func TestRunStopsOnFailure(t *testing.T) {
	ran := false
	boom := scigoErrors.New("boom")
	p := New("demo",
		Step{Name: "fails", Func: func(context.Context, *Catalog) error { return boom }},
		Step{Name: "never", Func: func(context.Context, *Catalog) error { ran = true; return nil }},
	)
	err := p.Run(context.Background(), NewCatalog(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `step "fails"`)
	assert.False(t, ran)
}

func TestValidate(t *testing.T) {
	noop := func(context.Context, *Catalog) error { return nil }

	err := New("p", Step{Name: "a", Inputs: []string{"nowhere"}, Func: noop}).Validate(NewCatalog(nil))
	assert.ErrorIs(t, err, scigoErrors.ErrNotFound)

	err = New("p", Step{Name: "a", Func: noop}, Step{Name: "a", Func: noop}).Validate(NewCatalog(nil))
	assert.Error(t, err)

	err = New("p", Step{Name: "a"}).Validate(NewCatalog(nil))
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "car_prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("year\n"), 0o644))
	c := NewCatalog(map[string]string{"car_prices": path})
	assert.NoError(t, New("p", Step{Name: "a", Inputs: []string{"car_prices"}, Func: noop}).Validate(c))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New("p", Step{Name: "a", Func: func(context.Context, *Catalog) error { return nil }})
	assert.ErrorIs(t, p.Run(ctx, NewCatalog(nil)), context.Canceled)
}

func TestConcat(t *testing.T) {
	noop := func(context.Context, *Catalog) error { return nil }
	a := New("a", Step{Name: "one", Func: noop})
	b := New("b", Step{Name: "two", Func: noop}, Step{Name: "three", Func: noop})
	all := Concat("all", a, b)
	assert.Equal(t, "all", all.Name())
	assert.Equal(t, []string{"one", "two", "three"}, all.StepNames())
	assert.Len(t, all.Steps(), 3)
}

func TestCatalogPaths(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(map[string]string{"out": filepath.Join(dir, "nested", "out.json")})
	c.Register("extra", filepath.Join(dir, "extra.csv"))
	assert.Equal(t, []string{"extra", "out"}, c.Names())

	_, err := c.Path("missing")
	assert.ErrorIs(t, err, scigoErrors.ErrNotFound)

	p, err := c.OutputPath("out")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Dir(p))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.False(t, c.Exists("out"))
}
