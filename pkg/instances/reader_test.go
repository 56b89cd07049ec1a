package instances

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader() *FileReader {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewFileReader(logger)
}

func TestFileReader_Read(t *testing.T) {
	f, err := newTestReader().Read(context.Background(), filepath.Join("testdata", "model.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "model.yaml", f.Name())
	assert.Equal(t, 4, f.Len())
	require.Len(t, f.Groups(), 1)
	assert.Len(t, f.Elements(), 3)

	group := f.Groups()[0]
	assert.Equal(t, "Gebäude A", group.Name())
	members := f.Members(group)
	require.Len(t, members, 2)
	assert.Equal(t, "Wand 1", members[0].Name())
	assert.Equal(t, []Instance{group}, f.AssignedTo(members[0]))

	column, ok := f.Lookup("3Zz9yXx8wWv7uUt6sSr5qQ")
	require.True(t, ok)
	assert.Empty(t, f.AssignedTo(column))
	assert.Empty(t, column.PropertySetNames())

	wall := members[0]
	v, present := Value(wall, "Maße", "Breite")
	assert.True(t, present)
	assert.Equal(t, 5.5, v)

	v, present = Value(wall, "Maße", "Material")
	assert.True(t, present, "key exists even without a value")
	assert.Nil(t, v)

	_, present = Value(wall, "Maße", "Höhe")
	assert.False(t, present)
	_, present = Value(wall, "Pset_Unknown", "Höhe")
	assert.False(t, present)
	assert.Equal(t, []string{"Allgemeine Eigenschaften", "Maße"}, wall.PropertySetNames())
}

func TestFileReader_Errors(t *testing.T) {
	r := newTestReader()

	_, err := r.Read(context.Background(), filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = r.Decode(context.Background(), "x.yaml", strings.NewReader("instances:\n  - name: no guid\n"))
	assert.Error(t, err)

	_, err = r.Decode(context.Background(), "x.yaml", strings.NewReader("instances: [1, 2"))
	assert.Error(t, err)

}

func TestFileReader_MembersOfNonGroupAreKept(t *testing.T) {
	doc := "instances:\n  - guid: a\n    group: false\n    members: [b]\n  - guid: b\n"
	f, err := newTestReader().Decode(context.Background(), "x.yaml", strings.NewReader(doc))
	require.NoError(t, err)

	a, _ := f.Lookup("a")
	b, _ := f.Lookup("b")
	assert.Empty(t, f.Members(a))
	assert.Empty(t, f.AssignedTo(b))
	assert.Equal(t, []Assignment{{Holder: a, Member: b}}, f.Misplaced())
}

func TestFileReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestReader().Decode(ctx, "x.yaml", strings.NewReader("instances:\n  - guid: a\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileReader_UnknownMemberIsSkipped(t *testing.T) {
	doc := "instances:\n  - guid: g\n    type: IfcGroup\n    members: [nope, e]\n  - guid: e\n    type: IfcWall\n"
	f, err := newTestReader().Decode(context.Background(), "x.yaml", strings.NewReader(doc))
	require.NoError(t, err)
	g, _ := f.Lookup("g")
	require.Len(t, f.Members(g), 1)
	assert.Equal(t, "e", f.Members(g)[0].GUID())
}

func TestFile_DuplicateGUID(t *testing.T) {
	f := NewFile("/tmp/a.yaml")
	first := NewElement("x", "first", "IfcWall", false, nil)
	f.Add(first)
	f.Add(NewElement("x", "second", "IfcWall", false, nil))

	assert.Equal(t, 2, f.Len())
	got, ok := f.Lookup("x")
	require.True(t, ok)
	assert.Same(t, first, got)

	group := NewElement("g", "", GroupType, true, nil)
	f.Add(group)
	require.NoError(t, f.Assign(group, first))
	require.NoError(t, f.Assign(group, first))
	assert.Len(t, f.Members(group), 1)
	assert.ErrorIs(t, f.Assign(first, group), ErrNotGroup)
}
