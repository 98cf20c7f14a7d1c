package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gchange/internal/config"
	"github.com/sells-group/gchange/internal/directory"
	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
)

type mapProvider map[string]ngmatch.List

func (m mapProvider) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names, nil
}

func (m mapProvider) Load(_ context.Context, name string) (ngmatch.List, error) {
	l, ok := m[name]
	if !ok {
		return ngmatch.List{}, eris.Wrapf(ngmatch.ErrExclusionListNotFound, "test: %q", name)
	}
	return l, nil
}

type errProvider struct{ err error }

func (p errProvider) List(context.Context) ([]string, error) { return nil, p.err }
func (p errProvider) Load(context.Context, string) (ngmatch.List, error) {
	return ngmatch.List{}, p.err
}

type memRecorder struct {
	mu   sync.Mutex
	runs []model.Run
	err  error
}

func (r *memRecorder) RecordRun(_ context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return r.err
}

func flatWorkbook(lines ...string) model.Workbook {
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{l}
	}
	return model.Workbook{Sheets: []model.Sheet{{Name: "Sheet1", Rows: rows}}}
}

var directoryDump = flatWorkbook(
	"ABC株式会社",
	"小売業 · 食品",
	"東京都新宿区1-2-3",
	"03-1111-2222",
	"XYZ商店",
	"06−3333−4444",
)

var ngLists = mapProvider{
	"clientA.xlsx": {Names: []string{"XYZ商店"}, Phones: []string{}},
	"clientB.xlsx": {Names: []string{}, Phones: []string{"03-1111-2222"}},
}

func TestRun_FlatNoList(t *testing.T) {
	rec := &memRecorder{}
	p := New(ngLists, rec, DefaultOptions())

	res, err := p.Run(context.Background(), Input{Source: "dump.xlsx", Workbook: directoryDump}, "なし")
	require.NoError(t, err)

	assert.Equal(t, model.LayoutFlat, res.Layout)
	assert.False(t, res.Filtered)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []model.Record{
		{Name: "ABC株式会社", Category: "食品", Address: "東京都新宿区1-2-3", Phone: "03-1111-2222"},
		{Name: "XYZ商店", Phone: "06-3333-4444"},
	}, res.Kept)
	assert.NotNil(t, res.Excluded)
	assert.Empty(t, res.Excluded)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.RunID, rec.runs[0].ID)
	assert.Equal(t, "dump.xlsx", rec.runs[0].Source)
	assert.Equal(t, 2, rec.runs[0].Kept)
	assert.Empty(t, rec.runs[0].NGList)
}

func TestRun_FiltersByName(t *testing.T) {
	p := New(ngLists, nil, DefaultOptions())

	res, err := p.Run(context.Background(), Input{Source: "dump.xlsx", Workbook: directoryDump}, "clientA.xlsx")
	require.NoError(t, err)

	assert.True(t, res.Filtered)
	assert.Equal(t, "clientA.xlsx", res.NGList)
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "ABC株式会社", res.Kept[0].Name)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "XYZ商店", res.Excluded[0].Name)
	assert.Equal(t, []model.Outcome{{}, {NameMatched: true}}, res.Outcomes)
}

func TestRun_FiltersByPhone(t *testing.T) {
	p := New(ngLists, nil, DefaultOptions())

	res, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "clientB.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "XYZ商店", res.Kept[0].Name)
	assert.Equal(t, 2, res.Total)
}

func TestRun_MissingListAborts(t *testing.T) {
	p := New(ngLists, nil, DefaultOptions())

	_, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "missing.xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))
}

func TestRun_MissingListUnfiltered(t *testing.T) {
	opts := DefaultOptions()
	opts.OnMissingList = Unfiltered
	p := New(ngLists, nil, opts)

	res, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "missing.xlsx")
	require.NoError(t, err)
	assert.False(t, res.Filtered)
	assert.Len(t, res.Kept, 2)
}

func TestRun_NilProvider(t *testing.T) {
	p := New(nil, nil, DefaultOptions())

	_, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "clientA.xlsx")
	assert.True(t, errors.Is(err, ngmatch.ErrExclusionListNotFound))

	res, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "")
	require.NoError(t, err)
	assert.Len(t, res.Kept, 2)
}

func TestRun_ProviderErrorPropagates(t *testing.T) {
	opts := DefaultOptions()
	opts.OnMissingList = Unfiltered
	p := New(errProvider{err: errors.New("disk failure")}, nil, opts)

	_, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "clientA.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk failure")
}

func TestRun_Tabular(t *testing.T) {
	wb := model.Workbook{Sheets: []model.Sheet{
		{Name: "説明", Rows: [][]string{{"readme"}}},
		{Name: "入力マスター", Rows: [][]string{
			{"会社名", "電話", "所在地"},
			{"ABC株式会社", "03−1111−2222", "東京都"},
			{"", "", ""},
			{"XYZ商店", "06-3333-4444", ""},
		}},
	}}
	opts := DefaultOptions()
	opts.DropEmpty = true
	p := New(ngLists, nil, opts)

	res, err := p.Run(context.Background(), Input{Source: "master.xlsx", Workbook: wb}, "clientA.xlsx")
	require.NoError(t, err)
	assert.Equal(t, model.LayoutTabular, res.Layout)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []model.Record{
		{Name: "ABC株式会社", Address: "東京都", Phone: "03-1111-2222"},
	}, res.Kept)
}

func TestRun_LayoutOverride(t *testing.T) {
	wb := model.Workbook{Sheets: []model.Sheet{{Name: "Sheet1", Rows: [][]string{
		{"企業名", "電話番号"},
		{"ABC株式会社", "03-1111-2222"},
	}}}}
	p := New(nil, nil, DefaultOptions())

	res, err := p.Run(context.Background(), Input{Workbook: wb, Layout: model.LayoutFlat}, "")
	require.NoError(t, err)
	assert.Equal(t, model.LayoutFlat, res.Layout)
	assert.Equal(t, []model.Record{
		{Name: "企業名"},
		{Name: "ABC株式会社"},
	}, res.Kept)
}

func TestRun_MalformedTabular(t *testing.T) {
	p := New(nil, nil, DefaultOptions())

	_, err := p.Run(context.Background(), Input{Workbook: model.Workbook{}, Layout: model.LayoutTabular}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: parse")
}

func TestRun_DuplicatePhones(t *testing.T) {
	wb := flatWorkbook("A社", "03-1111-2222", "B社", "03-1111-2222", "C社")

	opts := DefaultOptions()
	opts.DropDuplicatePhones = true
	p := New(nil, nil, opts)
	res, err := p.Run(context.Background(), Input{Workbook: wb}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A社", "C社"}, names(res.Kept))
	assert.Equal(t, 2, res.Total)
}

func TestRun_SharedPhoneKeptByDefault(t *testing.T) {
	wb := model.Workbook{Sheets: []model.Sheet{{Name: "入力マスター", Rows: [][]string{
		{"企業名", "電話番号"},
		{"本店", "03-1111-2222"},
		{"新宿支店", "03-1111-2222"},
	}}}}

	p := New(nil, nil, DefaultOptions())
	res, err := p.Run(context.Background(), Input{Workbook: wb}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"本店", "新宿支店"}, names(res.Kept))
}

func TestRun_RecorderFailureIsNotFatal(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	p := New(nil, rec, DefaultOptions())

	res, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "")
	require.NoError(t, err)
	assert.Len(t, res.Kept, 2)
	assert.Len(t, rec.runs, 1)
}

func TestRun_Concurrent(t *testing.T) {
	rec := &memRecorder{}
	p := New(ngLists, rec, DefaultOptions())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Run(context.Background(), Input{Workbook: directoryDump}, "clientA.xlsx")
			assert.NoError(t, err)
			assert.Len(t, res.Kept, 1)
		}()
	}
	wg.Wait()
	assert.Len(t, rec.runs, 8)
}

func names(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Parse.HeaderMode = "lenient"
	cfg.Parse.PhonePolicy = "last"
	cfg.Parse.FilterKeywords = true
	cfg.Parse.ExtraKeywords = []string{"地図"}
	cfg.Match.StrictNameClean = true
	cfg.Match.DropEmpty = true
	cfg.Match.OnMissingList = "unfiltered"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, directory.HeaderLenient, opts.Policy.Header)
	assert.Equal(t, directory.LastMatch, opts.Policy.Phone)
	assert.False(t, opts.Policy.AttributeGuard)
	assert.Equal(t, []string{"地図"}, opts.Policy.ExtraKeywords)
	assert.True(t, opts.Match.StrictNameClean)
	assert.False(t, opts.DropDuplicatePhones)
	assert.True(t, opts.DropEmpty)
	assert.Equal(t, Unfiltered, opts.OnMissingList)
}

func TestOptionsFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"header", func(c *config.Config) { c.Parse.HeaderMode = "loose" }, "parse.header_mode"},
		{"phone", func(c *config.Config) { c.Parse.PhonePolicy = "middle" }, "parse.phone_policy"},
		{"missing", func(c *config.Config) { c.Match.OnMissingList = "skip" }, "on_missing_list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.mutate(cfg)
			_, err := OptionsFromConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
