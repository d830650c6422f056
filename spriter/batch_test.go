package spriter

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"spriter/config"
)

type fixture struct {
	t    *testing.T
	dir  string
	fs   *memFS
	pk   *stackPacker
	opts Options
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.SpriteSheetDir = filepath.Join(dir, "out", "img")
	opts.SpriteSheetCSSPrefix = "../img"
	opts.CSSOutputDir = filepath.Join(dir, "out", "css")
	opts.Workers = 4
	return &fixture{t: t, dir: dir, fs: newMemFS(), pk: &stackPacker{}, opts: opts}
}

func (f *fixture) path(p string) string {
	return filepath.Join(f.dir, filepath.FromSlash(p))
}

func (f *fixture) exist(paths ...string) {
	for _, p := range paths {
		f.fs.files[f.path(p)] = true
	}
}

func (f *fixture) batch() *Batch {
	return NewBatch(f.opts, Collaborators{Packer: f.pk, FS: f.fs}, zaptest.NewLogger(f.t))
}

// run adds documents (path, text pairs) and runs the batch.
func (f *fixture) run(docs ...string) (*Result, error) {
	f.t.Helper()
	b := f.batch()
	for i := 0; i+1 < len(docs); i += 2 {
		if err := b.Add(f.path(docs[i]), []byte(docs[i+1])); err != nil {
			return nil, err
		}
	}
	return b.Run(context.Background())
}

func (f *fixture) mustRun(docs ...string) *Result {
	f.t.Helper()
	res, err := f.run(docs...)
	if err != nil {
		f.t.Fatalf("Run() error = %v", err)
	}
	return res
}

func stylesheet(t *testing.T, res *Result, src string) RewriteResult {
	t.Helper()
	for _, s := range res.Stylesheets {
		if s.Source == src {
			return s
		}
	}
	t.Fatalf("no result for stylesheet %s", src)
	return RewriteResult{}
}

func TestBatch_TwoImagesOneGroup(t *testing.T) {
	f := newFixture(t)
	f.exist("css/a.png", "css/b.png")

	res := f.mustRun("css/main.css", ".a { background: url('a.png?sprite=icons'); }\n.b { background: url('b.png?sprite=icons'); }\n")

	if len(res.Sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(res.Sheets))
	}
	sheet := res.Sheets[0]
	if sheet.Key != "icons.png" || sheet.File != "icons.png" || sheet.URL != "../img/icons.png" {
		t.Errorf("sheet = %+v", sheet)
	}
	if len(sheet.Members) != 2 || sheet.Members[0] != f.path("css/a.png") || sheet.Members[1] != f.path("css/b.png") {
		t.Errorf("members = %q", sheet.Members)
	}

	want := ".a {\n\tbackground: url('../img/icons.png');\n\tbackground-position: -0px -0px;\n}\n\n" +
		".b {\n\tbackground: url('../img/icons.png');\n\tbackground-position: -0px -10px;\n}\n"
	got := stylesheet(t, res, f.path("css/main.css"))
	if string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
	if !got.Changed {
		t.Error("stylesheet must be marked changed")
	}

	if string(f.fs.written[f.path("out/css/main.css")]) != want {
		t.Errorf("written stylesheet = %q", f.fs.written[f.path("out/css/main.css")])
	}
	if _, ok := f.fs.written[f.path("out/img/icons.png")]; !ok {
		t.Error("sprite sheet was not written")
	}
	if err := res.Err(); err != nil {
		t.Errorf("unexpected diagnostics: %v", err)
	}
}

func TestBatch_MissingImageSilent(t *testing.T) {
	f := newFixture(t)
	f.exist("present.png")

	res := f.mustRun("main.css", ".a { background: url(missing.png?sprite=icons) no-repeat; }\n.b { background: url(present.png?sprite=icons); }")

	var vf *VerificationFailure
	if !errors.As(res.Err(), &vf) {
		t.Fatalf("expected verification failure diagnostic, got %v", res.Err())
	}
	if vf.Path != f.path("missing.png") || vf.Key != "icons.png" {
		t.Errorf("verification failure = %+v", vf)
	}

	want := ".a {\n\tbackground: url(missing.png) no-repeat;\n}\n\n" +
		".b {\n\tbackground: url(../img/icons.png);\n\tbackground-position: -0px -0px;\n}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
	if len(res.Sheets) != 1 || len(res.Sheets[0].Members) != 1 {
		t.Errorf("missing image must not be packed: %+v", res.Sheets)
	}
}

func TestBatch_MissingImageStrict(t *testing.T) {
	f := newFixture(t)
	f.opts.Silent = false

	_, err := f.run("main.css", ".a { background: url(one.png?sprite=x); }\n.b { background: url(two.png?sprite=x); }")

	var vf *VerificationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "one.png") || !strings.Contains(err.Error(), "two.png") {
		t.Errorf("error must name every missing image: %v", err)
	}
	if len(f.pk.calls) != 0 {
		t.Error("packing must not start in strict mode after verification failure")
	}
	if len(f.fs.written) != 0 {
		t.Error("nothing must be written")
	}
}

func TestBatch_StatErrorIsFailure(t *testing.T) {
	f := newFixture(t)
	denied := errors.New("permission denied")
	f.fs.statErr[f.path("a.png")] = denied

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=x); }")
	if !errors.Is(res.Err(), denied) {
		t.Errorf("diagnostic must carry stat error, got %v", res.Err())
	}
}

func TestBatch_ReferenceConflict(t *testing.T) {
	f := newFixture(t)
	f.exist("img/x.png")

	b := f.batch()
	if err := b.Add(f.path("one.css"), []byte(".a { background: url(img/x.png?sprite=a); }")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	err := b.Add(f.path("sub/two.css"), []byte(".b { background: url(../img/x.png?sprite=b); }"))

	var rc *ReferenceConflictError
	if !errors.As(err, &rc) {
		t.Fatalf("expected reference conflict, got %v", err)
	}
	if rc.Path != f.path("img/x.png") || rc.Existing != "a.png" || rc.Conflicting != "b.png" {
		t.Errorf("conflict = %+v", rc)
	}

	_, runErr := b.Run(context.Background())
	if !errors.As(runErr, &rc) {
		t.Errorf("Run() must fail with the conflict, got %v", runErr)
	}
	if len(f.pk.calls) != 0 || len(f.fs.written) != 0 {
		t.Error("conflicting batch must not pack or write anything")
	}
}

func TestBatch_ReferenceConflictWithinDeclaration(t *testing.T) {
	f := newFixture(t)
	f.opts.Silent = true
	_, err := f.run("main.css", ".a { background: url(x.png?sprite=a), url(x.png?sprite=b); }")

	var rc *ReferenceConflictError
	if !errors.As(err, &rc) {
		t.Fatalf("expected reference conflict even in silent mode, got %v", err)
	}
}

func TestBatch_TwoGroupsInOneDeclaration(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png", "b.gif", "a2.gif")

	res := f.mustRun(
		"main.css", `.a { background: url("a.png?sprite=one") 0 0 no-repeat, url(b.gif?sprite=two); color: red; }
.b { background-image: url(a2.gif?sprite=two); }`)

	want := ".a {\n" +
		"\tbackground: url(\"../img/one.png\") 0 0 no-repeat, url(../img/two.gif);\n" +
		"\tbackground-position: -0px -0px, -0px -10px;\n" +
		"\tcolor: red;\n" +
		"}\n\n" +
		".b {\n" +
		"\tbackground-image: url(../img/two.gif);\n" +
		"\tbackground-position: -0px -0px;\n" +
		"}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
	if len(res.Sheets) != 2 || res.Sheets[0].Key != "one.png" || res.Sheets[1].Key != "two.gif" {
		t.Errorf("sheets = %+v", res.Sheets)
	}
}

func TestBatch_SameGroupTwiceInDeclaration(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png", "b.png")

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=i), url(b.png?sprite=i); }")

	want := ".a {\n\tbackground: url(../img/i.png), url(../img/i.png);\n\tbackground-position: -0px -0px, -0px -10px;\n}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
}

func TestBatch_UnmarkedUntouched(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png")

	plain := "/* header */\n.x{background:url(a.png) no-repeat}   .y { color : red }\n"
	res := f.mustRun("plain.css", plain, "other.css", ".a {\n  /* icon */\n  background: url(a.png?sprite=i);\n}\n"+
		".keep { background: url(a.png)   0  0; }\n.x { margin: 0   auto; }\n.y { font: 12px / 1.5 Arial , sans-serif; }")

	got := stylesheet(t, res, f.path("plain.css"))
	if string(got.Text) != plain || got.Changed {
		t.Errorf("stylesheet without markers must be byte identical, got %q", got.Text)
	}
	if string(f.fs.written[f.path("out/css/plain.css")]) != plain {
		t.Error("unchanged stylesheet must still be written")
	}

	other := string(stylesheet(t, res, f.path("other.css")).Text)
	for _, want := range []string{
		".a {\n\t/* icon */\n\tbackground: url(../img/i.png);\n\tbackground-position: -0px -0px;\n}",
		".keep {\n\tbackground: url(a.png)   0  0;\n}",
		".x {\n\tmargin: 0   auto;\n}",
		".y {\n\tfont: 12px / 1.5 Arial , sans-serif;\n}",
	} {
		if !strings.Contains(other, want) {
			t.Errorf("stylesheet does not contain %q:\n%s", want, other)
		}
	}
}

func TestBatch_NoImages(t *testing.T) {
	f := newFixture(t)
	res := f.mustRun("a.css", "p { margin: 0 }")
	if len(res.Sheets) != 0 || res.Err() != nil {
		t.Errorf("expected clean empty result, got %+v", res)
	}
	if len(f.pk.calls) != 0 {
		t.Error("packer must not be called")
	}
}

func TestBatch_CoordinatesConsistent(t *testing.T) {
	f := newFixture(t)
	f.exist("img/a.png", "img/b.png")

	res := f.mustRun(
		"one.css", ".x { background: url(img/b.png?sprite=s); }",
		"sub/two.css", ".y { background: url(../img/b.png?sprite=s); }\n.z { background: url(../img/a.png?sprite=s); }",
	)

	one := string(stylesheet(t, res, f.path("one.css")).Text)
	two := string(stylesheet(t, res, f.path("sub/two.css")).Text)
	if !strings.Contains(one, "background-position: -0px -10px;") {
		t.Errorf("one.css:\n%s", one)
	}
	if !strings.Contains(two, ".y {\n\tbackground: url(../img/s.png);\n\tbackground-position: -0px -10px;") {
		t.Errorf("two.css:\n%s", two)
	}
	if !strings.Contains(two, ".z {\n\tbackground: url(../img/s.png);\n\tbackground-position: -0px -0px;") {
		t.Errorf("two.css:\n%s", two)
	}

	refs := f.batchRefs(t, "one.css", ".x { background: url(img/b.png?sprite=s); }", "sub/two.css", ".y { background: url(../img/b.png?sprite=s); }")
	if len(refs) != 1 || refs[0].Citations != 2 {
		t.Errorf("image cited twice must have a single reference, got %+v", refs)
	}
}

func (f *fixture) batchRefs(t *testing.T, docs ...string) []Reference {
	t.Helper()
	b := f.batch()
	for i := 0; i+1 < len(docs); i += 2 {
		if err := b.Add(f.path(docs[i]), []byte(docs[i+1])); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return b.References()
}

func TestBatch_VerificationDisabled(t *testing.T) {
	f := newFixture(t)
	f.opts.VerifyImagesExist = false

	res := f.mustRun("main.css", ".a { background: url(nowhere.png?sprite=g); }")
	if len(f.fs.checked) != 0 {
		t.Errorf("filesystem must not be queried, checked %q", f.fs.checked)
	}
	if len(res.Sheets) != 1 || res.Sheets[0].Members[0] != f.path("nowhere.png") {
		t.Errorf("every reference must be packed, got %+v", res.Sheets)
	}
}

func TestBatch_PackingFailureIsScoped(t *testing.T) {
	f := newFixture(t)
	f.exist("broken.png", "ok.png")

	res := f.mustRun("main.css", ".a { background: url(broken.png?sprite=bad) 0 0; }\n.b { background: url(ok.png?sprite=good); }")

	var pe *PackingError
	if !errors.As(res.Err(), &pe) || pe.Key != "bad.png" || !errors.Is(pe, errBrokenImage) {
		t.Fatalf("expected packing error for bad.png, got %v", res.Err())
	}

	want := ".a {\n\tbackground: url(broken.png) 0 0;\n}\n\n" +
		".b {\n\tbackground: url(../img/good.png);\n\tbackground-position: -0px -0px;\n}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
	if _, ok := f.fs.written[f.path("out/img/bad.png")]; ok {
		t.Error("failed sheet must not be written")
	}
}

func TestBatch_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png", "b.png")

	first := f.mustRun("main.css", ".a { background: url(a.png?sprite=i); }\n.b { background: url(b.png?sprite=i); }")
	text := stylesheet(t, first, f.path("main.css")).Text

	f.fs = newMemFS()
	second := f.mustRun("main.css", string(text))
	got := stylesheet(t, second, f.path("main.css"))
	if got.Changed || string(got.Text) != string(text) {
		t.Errorf("second pass changed stylesheet:\n%s", got.Text)
	}
}

func TestBatch_ExistingPositionNotDuplicated(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png")

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=i); background-position: -0px -0px; }")
	want := ".a {\n\tbackground: url(../img/i.png);\n\tbackground-position: -0px -0px;\n}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
}

func TestBatch_IncludeMode(t *testing.T) {
	input := ".a { list-style-image: url(a.png?sprite=i); }\n.b { background-image: url(b.png?sprite=i); }"

	t.Run("implicit", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a.png", "b.png")
		res := f.mustRun("main.css", input)
		text := string(stylesheet(t, res, f.path("main.css")).Text)
		if !strings.Contains(text, "list-style-image: url(a.png?sprite=i);") {
			t.Errorf("non background declaration must be ignored:\n%s", text)
		}
		if len(res.Sheets) != 1 || len(res.Sheets[0].Members) != 1 {
			t.Errorf("sheets = %+v", res.Sheets)
		}
	})

	t.Run("explicit", func(t *testing.T) {
		f := newFixture(t)
		f.opts.IncludeMode = config.IncludeModeExplicit
		f.exist("a.png", "b.png")
		res := f.mustRun("main.css", input)
		text := string(stylesheet(t, res, f.path("main.css")).Text)
		if !strings.Contains(text, "list-style-image: url(../img/i.png);\n\tbackground-position: -0px -0px;") {
			t.Errorf("marked declaration must be rewritten:\n%s", text)
		}
		if len(res.Sheets) != 1 || len(res.Sheets[0].Members) != 2 {
			t.Errorf("sheets = %+v", res.Sheets)
		}
	})
}

func TestBatch_NestedRules(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png")

	res := f.mustRun("main.css", "@media print { .a { background: url(a.png?sprite=p); } }")
	want := "@media print {\n\t.a {\n\t\tbackground: url(../img/p.png);\n\t\tbackground-position: -0px -0px;\n\t}\n}\n"
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != want {
		t.Errorf("rewritten stylesheet:\n%s\nwant:\n%s", got.Text, want)
	}
}

func TestBatch_RemoteIgnored(t *testing.T) {
	f := newFixture(t)
	input := ".a { background: url(https://example.com/a.png?sprite=x); }"

	res := f.mustRun("main.css", input)
	if got := stylesheet(t, res, f.path("main.css")); string(got.Text) != input {
		t.Errorf("remote reference must be left alone, got %q", got.Text)
	}
	if len(f.fs.checked) != 0 {
		t.Error("remote reference must not be verified")
	}
}

func TestBatch_WebRoot(t *testing.T) {
	f := newFixture(t)
	f.opts.WebRoot = f.path("public")
	f.exist("public/img/a.png")

	f.mustRun("css/main.css", ".a { background: url(/img/a.png?sprite=x); }")
	if len(f.fs.checked) != 1 || f.fs.checked[0] != f.path("public/img/a.png") {
		t.Errorf("root relative URL resolved to %q", f.fs.checked)
	}
}

func TestBatch_ParseError(t *testing.T) {
	broken := ".a { color red; }\n.b { background: url(b.png?sprite=x); }"

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t)
		f.opts.Silent = false
		_, err := f.run("broken.css", broken)
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Path != f.path("broken.css") {
			t.Errorf("expected parse error naming the stylesheet, got %v", err)
		}
	})

	t.Run("silent", func(t *testing.T) {
		f := newFixture(t)
		f.exist("b.png")
		res := f.mustRun("broken.css", broken)
		var pe *ParseError
		if !errors.As(res.Err(), &pe) {
			t.Errorf("expected parse error diagnostic, got %v", res.Err())
		}
		if len(res.Stylesheets) != 1 {
			t.Errorf("malformed stylesheet must still be processed")
		}
	})
}

func TestBatch_DestinationConflict(t *testing.T) {
	docs := []string{
		"a/style.css", ".a { background: url(x.png?sprite=a); }",
		"b/style.css", ".b { color: red; }",
	}

	t.Run("flattened", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a/x.png")
		_, err := f.run(docs...)
		var dc *DestinationConflictError
		if !errors.As(err, &dc) {
			t.Fatalf("expected destination conflict, got %v", err)
		}
		if dc.Destination != f.path("out/css/style.css") || len(dc.Sources) != 2 {
			t.Errorf("conflict = %+v", dc)
		}
		if len(f.fs.written) != 0 {
			t.Errorf("nothing must be written, got %d files", len(f.fs.written))
		}
	})

	t.Run("sheet url without sheet output", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a.png", "b.png")
		f.opts.SpriteSheetDir = ""
		f.opts.TransliterateNames = true
		_, err := f.run("main.css", ".a { background: url(a.png?sprite=Icons); }\n.b { background: url(b.png?sprite=icons); }")
		var dc *DestinationConflictError
		if !errors.As(err, &dc) {
			t.Fatalf("expected destination conflict, got %v", err)
		}
		if dc.Destination != "../img/icons.png" || len(dc.Sources) != 2 || dc.Sources[0] != "Icons.png" || dc.Sources[1] != "icons.png" {
			t.Errorf("conflict = %+v", dc)
		}
		if len(f.fs.written) != 0 {
			t.Errorf("nothing must be written, got %d files", len(f.fs.written))
		}
	})

	t.Run("relative to root", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a/x.png")
		f.opts.CSSRoot = f.dir
		f.mustRun(docs...)
		for _, p := range []string{"out/css/a/style.css", "out/css/b/style.css", "out/img/a.png"} {
			if _, ok := f.fs.written[f.path(p)]; !ok {
				t.Errorf("%s was not written", p)
			}
		}
	})
}

func TestBatch_WriteErrorsAndCompletion(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png")
	diskFull := errors.New("disk full")
	f.fs.writeErr[f.path("out/img/i.png")] = diskFull

	completed := 0
	f.opts.OnComplete = func() { completed++ }

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=i); }")

	var we *WriteError
	if !errors.As(res.Err(), &we) || we.Path != f.path("out/img/i.png") || !errors.Is(we, diskFull) {
		t.Errorf("expected write error diagnostic, got %v", res.Err())
	}
	if _, ok := f.fs.written[f.path("out/css/main.css")]; !ok {
		t.Error("failed write must not prevent other writes")
	}
	if completed != 1 {
		t.Errorf("completion callback called %d times", completed)
	}
}

func TestBatch_OutputsDisabled(t *testing.T) {
	f := newFixture(t)
	f.opts.SpriteSheetDir, f.opts.CSSOutputDir, f.opts.SpriteSheetCSSPrefix = "", "", ""
	f.exist("a.png")

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=i); }")
	if len(f.fs.written) != 0 {
		t.Errorf("nothing must be written, got %d files", len(f.fs.written))
	}
	if res.Sheets[0].Destination != "" || res.Stylesheets[0].Destination != "" {
		t.Error("destinations must be empty")
	}
	if !strings.Contains(string(res.Stylesheets[0].Text), "url(i.png)") {
		t.Errorf("empty prefix must yield bare sheet name:\n%s", res.Stylesheets[0].Text)
	}
}

func TestBatch_TransliteratedNames(t *testing.T) {
	f := newFixture(t)
	f.opts.TransliterateNames = true
	f.exist("a.png")

	res := f.mustRun("main.css", ".a { background: url(a.png?sprite=Иконки); }")
	if len(res.Sheets) != 1 || res.Sheets[0].File != "ikonki.png" || res.Sheets[0].Key != "Иконки.png" {
		t.Errorf("sheets = %+v", res.Sheets)
	}
}

func TestBatch_LastWriteWins(t *testing.T) {
	f := newFixture(t)
	f.exist("x.png")

	b := f.batch()
	if err := b.Add(f.path("main.css"), []byte(".a { background: url(x.png?sprite=old); }")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(f.path("main.css"), []byte(".a { background: url(x.png?sprite=new); }")); err != nil {
		t.Fatalf("replacing stylesheet must not conflict with itself: %v", err)
	}
	refs := b.References()
	if len(refs) != 1 || refs[0].Key != "new.png" || refs[0].Citations != 1 {
		t.Fatalf("references = %+v", refs)
	}

	res, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stylesheets) != 1 || len(res.Sheets) != 1 || res.Sheets[0].Key != "new.png" {
		t.Errorf("result = %+v", res)
	}
}

func TestBatch_PackingOptionsForwarded(t *testing.T) {
	f := newFixture(t)
	f.opts.PackingOptions = map[string]any{
		"algorithm": "shelf",
		"padding":   2,
		"custom":    []any{"kept", 1.5},
	}
	f.exist("a.png", "b.gif")

	f.mustRun("main.css", ".a { background: url(a.png?sprite=one); }\n.b { background: url(b.gif?sprite=two); }")

	if len(f.pk.opts) != 2 {
		t.Fatalf("packer was called %d times, want 2", len(f.pk.opts))
	}
	for i, got := range f.pk.opts {
		if !reflect.DeepEqual(got, f.opts.PackingOptions) {
			t.Errorf("call %d options = %#v, want %#v", i, got, f.opts.PackingOptions)
		}
	}
}

func TestBatch_ReferencesDuringRun(t *testing.T) {
	f := newFixture(t)
	f.exist("a.png", "b.png", "c.png")
	b := f.batch()
	if err := b.Add(f.path("main.css"), []byte(".a { background: url(a.png?sprite=i), url(b.png?sprite=i); }\n"+
		".c { background: url(c.png?sprite=i); }\n.d { background: url(d.png?sprite=i); }")); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	polled := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-done:
				polled <- n
				return
			default:
				n += len(b.References())
			}
		}
	}()
	_, err := b.Run(context.Background())
	close(done)
	<-polled
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]Status{
		f.path("a.png"): StatusPresent,
		f.path("b.png"): StatusPresent,
		f.path("c.png"): StatusPresent,
		f.path("d.png"): StatusAbsent,
	}
	refs := b.References()
	if len(refs) != len(want) {
		t.Fatalf("got %d references, want %d", len(refs), len(want))
	}
	for _, ref := range refs {
		if ref.Status != want[ref.Path] {
			t.Errorf("%s status = %v, want %v", ref.Path, ref.Status, want[ref.Path])
		}
	}
}

func TestBatch_Lifecycle(t *testing.T) {
	f := newFixture(t)
	b := f.batch()
	if b.Phase() != PhaseIngesting || b.ID() == "" {
		t.Fatalf("new batch phase %s, id %q", b.Phase(), b.ID())
	}
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.Phase() != PhaseDone {
		t.Errorf("phase after run = %s", b.Phase())
	}
	if err := b.Add(f.path("late.css"), nil); !errors.Is(err, ErrBatchClosed) {
		t.Errorf("Add() after run error = %v", err)
	}
	if _, err := b.Run(context.Background()); !errors.Is(err, ErrBatchClosed) {
		t.Errorf("second Run() error = %v", err)
	}
	if f.batch().ID() == b.ID() {
		t.Error("batches must have distinct ids")
	}
}

func TestBatch_Cancelled(t *testing.T) {
	t.Run("before run", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a.png")
		b := f.batch()
		if err := b.Add(f.path("main.css"), []byte(".a { background: url(a.png?sprite=i); }")); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := b.Run(ctx)
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) || res != nil {
			t.Errorf("Run() = %v, %v", res, err)
		}
		if len(f.fs.checked) != 0 || len(f.fs.written) != 0 {
			t.Error("cancelled batch must not touch filesystem")
		}
	})

	t.Run("while packing", func(t *testing.T) {
		f := newFixture(t)
		f.exist("a.png")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.pk.hook = cancel

		b := f.batch()
		if err := b.Add(f.path("main.css"), []byte(".a { background: url(a.png?sprite=i); }")); err != nil {
			t.Fatal(err)
		}
		_, err := b.Run(ctx)
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Run() error = %v", err)
		}
		if len(f.fs.written) != 0 {
			t.Error("cancelled batch must not write anything")
		}
		if b.Phase() != PhaseDone {
			t.Errorf("phase = %s", b.Phase())
		}
	})
}
