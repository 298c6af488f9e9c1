package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/model"
)

// mobileOptions mirror the tolerances the mobile client shipped with.
var (
	mobileCarve   = CarveOptions{AllowedOverlap: 5 * time.Minute, MinLength: 10 * time.Minute}
	mobileResolve = Options{Scope: ScopeScheduledAware, AllowedOverlap: 5 * time.Minute}
)

func carveAndResolve(t *testing.T, frees, fixed []model.Item) []row {
	t.Helper()
	in := append(append([]model.Item{}, frees...), fixed...)
	carved, err := CarveFreeBlocks(in, mobileCarve)
	require.NoError(t, err)
	out, err := Resolve(carved, mobileResolve)
	require.NoError(t, err)
	return summarize(out)
}

func TestCarveFreeBlocks_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		frees []model.Item
		fixed []model.Item
		want  []row
	}{
		{
			name:  "no intersection within tolerance",
			frees: []model.Item{free("14:00", "14:30", "m1")},
			fixed: []model.Item{session("14:25", "14:50", "i1")},
			want:  []row{{"m1", "14:00", "14:30", false}, {"i1", "14:25", "14:50", false}},
		},
		{
			name:  "session covers the tail",
			frees: []model.Item{free("14:00", "16:00", "m1")},
			fixed: []model.Item{session("15:00", "16:00", "i1")},
			want:  []row{{"m1", "14:00", "15:00", false}, {"i1", "15:00", "16:00", false}},
		},
		{
			name:  "session covers the head",
			frees: []model.Item{free("14:00", "16:00", "m1")},
			fixed: []model.Item{session("13:00", "15:00", "i1")},
			want:  []row{{"i1", "13:00", "15:00", false}, {"m1", "15:00", "16:00", false}},
		},
		{
			name:  "same time",
			frees: []model.Item{free("14:00", "16:00", "m1")},
			fixed: []model.Item{session("14:00", "16:00", "i1")},
			want:  []row{{"i1", "14:00", "16:00", false}},
		},
		{
			name:  "no split, remaining not big enough",
			frees: []model.Item{free("14:00", "16:09", "m1")},
			fixed: []model.Item{session("14:05", "16:00", "i1")},
			want:  []row{{"i1", "14:05", "16:00", false}},
		},
		{
			name:  "split",
			frees: []model.Item{free("14:00", "16:10", "m1")},
			fixed: []model.Item{session("14:00", "16:00", "i1")},
			want:  []row{{"i1", "14:00", "16:00", false}, {"m1", "16:00", "16:10", false}},
		},
		{
			name:  "two splits",
			frees: []model.Item{free("14:00", "17:00", "m1")},
			fixed: []model.Item{session("14:30", "15:00", "i1"), session("15:30", "16:00", "i2")},
			want: []row{
				{"m1", "14:00", "14:30", false},
				{"i1", "14:30", "15:00", false},
				{"m1", "15:00", "15:30", false},
				{"i2", "15:30", "16:00", false},
				{"m1", "16:00", "17:00", false},
			},
		},
		{
			name:  "two splits with no remaining",
			frees: []model.Item{free("14:00", "17:00", "m1")},
			fixed: []model.Item{session("14:30", "15:00", "i1"), session("16:30", "16:51", "i2")},
			want: []row{
				{"m1", "14:00", "14:30", false},
				{"i1", "14:30", "15:00", false},
				{"m1", "15:00", "16:30", false},
				{"i2", "16:30", "16:51", false},
			},
		},
		{
			name: "two splits, three free blocks",
			frees: []model.Item{
				free("12:00", "15:00", "m1"),
				free("15:00", "17:00", "m2"),
				free("17:00", "17:40", "m3"),
			},
			fixed: []model.Item{session("14:30", "15:00", "i1"), session("16:30", "16:51", "i2")},
			want: []row{
				{"m1", "12:00", "14:30", false},
				{"i1", "14:30", "15:00", false},
				{"m2", "15:00", "16:30", false},
				{"i2", "16:30", "16:51", false},
				{"m3", "17:00", "17:40", false},
			},
		},
		{
			name: "conflicting sessions among free blocks",
			frees: []model.Item{
				free("12:00", "15:00", "m1"),
				free("15:00", "17:00", "m2"),
				free("17:00", "17:40", "m3"),
			},
			fixed: []model.Item{
				session("14:30", "15:00", "i1"),
				session("16:30", "16:51", "i2"),
				session("16:30", "16:40", "i3"),
			},
			want: []row{
				{"m1", "12:00", "14:30", false},
				{"i1", "14:30", "15:00", false},
				{"m2", "15:00", "16:30", false},
				{"i2", "16:30", "16:51", false},
				{"i3", "16:30", "16:40", true},
				{"m3", "17:00", "17:40", false},
			},
		},
		{
			name: "borderline overlap is tolerated",
			frees: []model.Item{
				free("12:00", "15:00", "m1"),
				free("15:00", "17:00", "m2"),
				free("17:00", "17:40", "m3"),
			},
			fixed: []model.Item{
				session("14:30", "15:00", "i1"),
				session("16:30", "16:51", "i2"),
				session("16:50", "17:00", "i3"),
			},
			want: []row{
				{"m1", "12:00", "14:30", false},
				{"i1", "14:30", "15:00", false},
				{"m2", "15:00", "16:30", false},
				{"i2", "16:30", "16:51", false},
				{"i3", "16:50", "17:00", false},
				{"m3", "17:00", "17:40", false},
			},
		},
		{
			name: "conflicting sessions",
			fixed: []model.Item{
				session("14:30", "15:00", "i1"),
				session("16:30", "19:00", "i2"),
				session("16:30", "17:00", "i3"),
				session("18:00", "18:30", "i4"),
			},
			want: []row{
				{"i1", "14:30", "15:00", false},
				{"i2", "16:30", "19:00", false},
				{"i3", "16:30", "17:00", true},
				{"i4", "18:00", "18:30", true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, carveAndResolve(t, tt.frees, tt.fixed))
		})
	}
}

func TestCarveFreeBlocks_NonDisplacingItems(t *testing.T) {
	in := []model.Item{
		free("12:00", "14:00", "free"),
		block("12:30", "13:00", "coffee", model.TypeBreak),
		unscheduled("13:00", "13:30", "maybe"),
	}
	out, err := CarveFreeBlocks(in, CarveOptions{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "free", out[2].Title)
	assert.Equal(t, at("12:00"), out[2].Start)
	assert.Equal(t, at("14:00"), out[2].End)
}

func TestCarveFreeBlocks_MealDisplaces(t *testing.T) {
	in := []model.Item{
		free("11:00", "14:00", "free"),
		block("12:00", "13:00", "lunch", model.TypeMeal),
	}
	out, err := CarveFreeBlocks(in, CarveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []row{
		{"lunch", "12:00", "13:00", false},
		{"free", "11:00", "12:00", false},
		{"free", "13:00", "14:00", false},
	}, summarize(out))
}

func TestCarveFreeBlocks_RejectsInvalidItems(t *testing.T) {
	// The inverted free block sits inside the talk and would otherwise be
	// carved away before Resolve could see it.
	in := []model.Item{
		session("14:00", "16:00", "talk"),
		free("15:30", "14:30", "free"),
	}
	out, err := CarveFreeBlocks(in, CarveOptions{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "free", verr.ID)
}

func TestCountAvailable(t *testing.T) {
	blk := free("13:00", "15:00", "free")
	pool := []model.Item{
		unscheduled("12:30", "13:30", "started before"),
		unscheduled("13:00", "14:00", "a"),
		unscheduled("14:30", "15:30", "b"),
		unscheduled("15:00", "16:00", "at end"),
		session("13:30", "14:00", "already mine"),
		block("13:30", "14:00", "coffee", model.TypeBreak),
	}
	assert.Equal(t, 2, CountAvailable(blk, pool))
}
