package frame

import (
	"archive/zip"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const beersCSV = `,abv,ibu,id,name,style,brewery_id,ounces
0,0.05,,1436,Pub Beer,American Pale Lager,408,12.0
1,0.066,,2265,Devil's Cup,American Pale Ale (APA),177,12.0
2,0.071,,2264,Rise of the Phoenix,American IPA,177,12.0
3,0.09,60,2263,Sinister,American Double / Imperial IPA,177,12.0
4,,25,2262,Sex and Candy,American IPA,177,12.0
5,0.072,40,2261,Black Exodus,Oatmeal Stout,177,12.0
6,0.073,,2260,Lake Street Express,American Pale Ale (APA),177,12.0
7,0.069,65,2259,Foreman,,177,12.0
`

func loadBeers(t *testing.T) *Frame {
	t.Helper()
	f, err := Read(strings.NewReader(beersCSV), ReadOptions{})
	require.NoError(t, err)
	return f
}

func TestRead_HeaderAndTypes(t *testing.T) {
	f := loadBeers(t)

	rows, cols := f.Shape()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 8, cols)
	assert.Equal(t, "Unnamed: 0", f.Names()[0])

	info := f.Info()
	assert.Equal(t, 8, info.Rows)
	byName := make(map[string]ColumnInfo)
	for _, c := range info.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, "float64", byName["abv"].Dtype)
	assert.Equal(t, 7, byName["abv"].NonNull)
	assert.Equal(t, "int64", byName["ibu"].Dtype)
	assert.Equal(t, 4, byName["ibu"].NonNull)
	assert.Equal(t, "object", byName["style"].Dtype)
	assert.Equal(t, 7, byName["style"].NonNull)

	nulls := f.NullCounts()
	assert.Equal(t, 0, nulls["name"])
	assert.Equal(t, 4, nulls["ibu"])
	assert.Equal(t, 6, f.TotalNulls())
}

func TestRead_ForcedTypes(t *testing.T) {
	f, err := Read(strings.NewReader(beersCSV), ReadOptions{
		Types: map[string]series.Type{"ibu": series.Float, "id": series.String},
	})
	require.NoError(t, err)
	info := f.Info()
	assert.Equal(t, "float64", info.Columns[2].Dtype)
	assert.Equal(t, "object", info.Columns[3].Dtype)
}

func TestHeadAndDescribe(t *testing.T) {
	f := loadBeers(t)
	head := f.Head(5)
	rows, _ := head.Shape()
	assert.Equal(t, 5, rows)
	assert.Len(t, head.Records(), 6) // header + 5
	rows, _ = f.Head(100).Shape()
	assert.Equal(t, 8, rows)

	// 負の n は末尾 |n| 行を除く
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{-1, 7},
		{-8, 0},
		{-20, 0},
	}
	for _, tt := range tests {
		rows, _ = f.Head(tt.n).Shape()
		assert.Equal(t, tt.want, rows, "Head(%d)", tt.n)
	}

	desc := f.Describe()
	assert.Equal(t, []string{StatColumn, "Unnamed: 0", "abv", "ibu", "id", "brewery_id", "ounces"}, desc.Names())

	ibu, err := desc.Column("ibu")
	require.NoError(t, err)
	v := ibu.Float()
	assert.Equal(t, 4.0, v[0])            // count
	assert.InDelta(t, 47.5, v[1], 1e-12)  // mean
	assert.Equal(t, 25.0, v[3])           // min
	assert.InDelta(t, 36.25, v[4], 1e-12) // 25%
	assert.InDelta(t, 50.0, v[5], 1e-12)  // 50%
	assert.Equal(t, 65.0, v[7])           // max
	// 標本標準偏差
	assert.InDelta(t, math.Sqrt(1025.0/3), v[2], 1e-9)
}

func TestValueCounts(t *testing.T) {
	f := loadBeers(t)
	counts, err := f.ValueCounts("style")
	require.NoError(t, err)
	require.Len(t, counts, 5)
	assert.Equal(t, ValueCount{"American IPA", 2}, counts[0])
	assert.Equal(t, ValueCount{"American Pale Ale (APA)", 2}, counts[1])
	assert.Equal(t, ValueCount{"American Double / Imperial IPA", 1}, counts[2])

	_, err = f.ValueCounts("color")
	var cnf *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &cnf))
}

func TestCleaningSteps(t *testing.T) {
	f := loadBeers(t)

	f, err := f.DropColumns("Unnamed: 0")
	require.NoError(t, err)
	assert.False(t, f.HasColumn("Unnamed: 0"))

	f, abvMedian, err := f.FillNAMedian("abv")
	require.NoError(t, err)
	assert.InDelta(t, 0.071, abvMedian, 1e-12)

	f, ibuMedian, err := f.FillNAMedian("ibu")
	require.NoError(t, err)
	assert.Equal(t, 50.0, ibuMedian)
	assert.Equal(t, 0, f.NullCounts()["ibu"])

	ibu, _ := f.Column("ibu")
	assert.Equal(t, series.Float, ibu.Type())
	assert.Equal(t, 50.0, ibu.Float()[0])
	abv, _ := f.Column("abv")
	assert.Equal(t, 0.05, abv.Float()[0], "observed values are kept")
	assert.InDelta(t, 0.071, abv.Float()[4], 1e-12)

	f, dropped, err := f.DropNA()
	require.NoError(t, err)
	assert.Equal(t, 1, dropped) // the row without a style
	rows, _ := f.Shape()
	assert.Equal(t, 7, rows)
	assert.Equal(t, 0, f.TotalNulls())

	_, _, err = f.FillNAMedian("name")
	assert.Error(t, err)

	empty, err := Read(strings.NewReader("rating,ounces\n,12\n,16\n"),
		ReadOptions{Types: map[string]series.Type{"rating": series.Float}})
	require.NoError(t, err)
	_, _, err = empty.FillNAMedian("rating")
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve), "all-missing column: %v", err)
	_, err = f.DropColumns("missing")
	assert.Error(t, err)
}

func TestGetDummiesAndXY(t *testing.T) {
	f := loadBeers(t)
	f, err := f.DropColumns("Unnamed: 0", "id", "name", "brewery_id")
	require.NoError(t, err)
	f, _, err = f.FillNAMedian("abv")
	require.NoError(t, err)
	f, _, err = f.FillNAMedian("ibu")
	require.NoError(t, err)
	f, _, err = f.DropNA()
	require.NoError(t, err)

	d, err := f.GetDummies("style")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"abv", "ibu", "ounces",
		"style_American Double / Imperial IPA",
		"style_American IPA",
		"style_American Pale Ale (APA)",
		"style_American Pale Lager",
		"style_Oatmeal Stout",
	}, d.Names())

	X, y, names, err := d.XY("abv")
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 7, c)
	assert.Equal(t, 7, y.Len())
	assert.Equal(t, "ibu", names[0])
	assert.Equal(t, 0.05, y.AtVec(0))

	// 各行はちょうど1つのスタイル
	for i := 0; i < r; i++ {
		var sum float64
		for j := 2; j < c; j++ {
			sum += X.At(i, j)
		}
		assert.Equal(t, 1.0, sum, "row %d", i)
	}

	_, _, _, err = f.XY("abv")
	assert.Error(t, err, "style is still a string column")
}

func TestGetDummies_MissingCategory(t *testing.T) {
	f := loadBeers(t)

	d, err := f.GetDummies("style")
	require.NoError(t, err)
	for _, name := range d.Names() {
		assert.NotEqual(t, "style_NaN", name)
		assert.NotEqual(t, "style_", name)
	}

	styles := []string{
		"style_American Double / Imperial IPA",
		"style_American IPA",
		"style_American Pale Ale (APA)",
		"style_American Pale Lager",
		"style_Oatmeal Stout",
	}
	// 行7 (Foreman) はスタイルが欠損
	for row, want := range map[int]float64{0: 1, 3: 1, 7: 0} {
		var sum float64
		for _, name := range styles {
			col, err := d.Column(name)
			require.NoError(t, err)
			sum += col.Float()[row]
		}
		assert.Equal(t, want, sum, "row %d", row)
	}
}

func TestXY_MissingValue(t *testing.T) {
	f := loadBeers(t)
	f, err := f.DropColumns("name", "style")
	require.NoError(t, err)
	_, _, _, err = f.XY("abv")
	var mv *errors.MissingValueError
	assert.True(t, errors.As(err, &mv))
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "craft-cans.zip")
	writeZip(t, archive, map[string]string{
		"beers.csv":         beersCSV,
		"breweries.csv":     ",name,city,state\n0,NorthGate Brewing,Minneapolis, MN\n",
		"nested/readme.txt": "hello",
	})

	dest := filepath.Join(dir, "data")
	files, err := ExtractArchive(context.Background(), archive, dest)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	f, err := ReadCSV(filepath.Join(dest, "beers.csv"), ReadOptions{})
	require.NoError(t, err)
	rows, _ := f.Shape()
	assert.Equal(t, 8, rows)

	b, err := ReadCSV(filepath.Join(dest, "breweries.csv"), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "name", "city", "state"}, b.Names())

	_, err = os.Stat(filepath.Join(dest, "nested", "readme.txt"))
	assert.NoError(t, err)
}

func TestExtractArchive_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ExtractArchive(context.Background(), filepath.Join(dir, "missing.zip"), dir)
	assert.Error(t, err)

	evil := filepath.Join(dir, "evil.zip")
	writeZip(t, evil, map[string]string{"../escape.csv": "a\n1\n"})
	_, err = ExtractArchive(context.Background(), evil, filepath.Join(dir, "out"))
	var ae *errors.ArchiveError
	assert.True(t, errors.As(err, &ae))
	_, statErr := os.Stat(filepath.Join(dir, "escape.csv"))
	assert.True(t, os.IsNotExist(statErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := filepath.Join(dir, "ok.zip")
	writeZip(t, ok, map[string]string{"a.csv": "a\n1\n"})
	_, err = ExtractArchive(ctx, ok, filepath.Join(dir, "out2"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"), ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}
