package synth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

func TestNewContextValidation(t *testing.T) {
	_, err := NewContext(44100, 0)
	require.True(t, errors.Is(err, errs.ErrInvalidNumChannels))
	_, err = NewContext(44100, MaxChannels+1)
	require.True(t, errors.Is(err, errs.ErrInvalidNumChannels))
	_, err = NewContext(MinSampleRate-1, 2)
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	_, err = NewContext(MaxSampleRate+1, 2)
	require.True(t, errors.Is(err, errs.ErrInvalidValue))

	ctx, err := NewContext(48000, 2)
	require.NoError(t, err)
	require.Equal(t, fixed.FromSamples(200), ctx.ClockPeriod())
}

func TestContextAttrs(t *testing.T) {
	ctx, err := NewContext(44100, 2)
	require.NoError(t, err)
	v, err := ctx.Attr(attr.SampleRate)
	require.NoError(t, err)
	require.Equal(t, 44100, v)
	v, err = ctx.Attr(attr.NumChannels)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	require.True(t, errors.Is(ctx.SetAttr(attr.SampleRate, 8000), errs.ErrInvalidState))
	require.True(t, errors.Is(ctx.SetAttr(attr.Time, 0), errs.ErrInvalidState))
	require.True(t, errors.Is(ctx.SetAttr(attr.ClockPeriod, -1), errs.ErrInvalidValue))
	require.True(t, errors.Is(ctx.SetAttr(attr.Volume, 1), errs.ErrInvalidAttribute))

	require.NoError(t, ctx.SetAttr(attr.ClockPeriod, int(fixed.FromSamples(100))))
	v, err = ctx.Attr(attr.ClockPeriod)
	require.NoError(t, err)
	require.Equal(t, int(fixed.FromSamples(100)), v)

	out := make([]int16, 2*1500)
	_, err = ctx.Generate(out, 1500)
	require.NoError(t, err)
	v, err = ctx.Attr(attr.Time)
	require.NoError(t, err)
	require.Equal(t, int(fixed.FromSamples(1500)), v)
}

func TestGenerateRejectsShortBuffer(t *testing.T) {
	ctx, err := NewContext(44100, 2)
	require.NoError(t, err)
	_, err = ctx.Generate(make([]int16, 10), 6)
	require.True(t, errors.Is(err, errs.ErrInvalidNumFrames))
}

func TestBeatDividersFireBeforeEffect(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	var order []string
	effect := clock.NewDivider(1, func(*clock.Tick) error {
		order = append(order, "effect")
		return nil
	})
	beat := clock.NewDivider(1, func(*clock.Tick) error {
		order = append(order, "beat")
		return nil
	})
	require.NoError(t, ctx.AttachDivider(effect, GroupEffect))
	require.NoError(t, ctx.AttachDivider(beat, GroupBeat))
	require.True(t, errors.Is(ctx.AttachDivider(beat, GroupEffect), errs.ErrInvalidState))

	_, err = ctx.Generate(make([]int16, 10), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"beat", "effect"}, order)
}

func TestDividerCountOverOneSecond(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	fired := 0
	require.NoError(t, ctx.AttachDivider(clock.NewDivider(2, func(*clock.Tick) error {
		fired++
		return nil
	}), GroupBeat))
	_, err = ctx.Generate(make([]int16, 44100), 44100)
	require.NoError(t, err)
	require.Equal(t, DefaultTickRate/2, fired)
}

func TestAttachDividerNeedsRunningClock(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	ctx.SetClockPeriod(0)
	err = ctx.AttachDivider(clock.NewDivider(1, nil), GroupBeat)
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	err = ctx.AttachDivider(clock.NewDivider(1, nil), Group(7))
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
}

func TestGenerateToTime(t *testing.T) {
	ctx, err := NewContext(44100, 2)
	require.NoError(t, err)
	total := 0
	require.NoError(t, ctx.GenerateToTime(fixed.FromSamples(2500), func(frames []int16) error {
		require.LessOrEqual(t, len(frames), 2*MaxGenerateSamples)
		total += len(frames)
		return nil
	}))
	require.Equal(t, 2*2500, total)
	require.Equal(t, fixed.FromSamples(2500), ctx.Time())
}

func TestGenerateToTimeSinkError(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	boom := errors.New("device gone")
	calls := 0
	err = ctx.GenerateToTime(fixed.FromSamples(5000), func([]int16) error {
		calls++
		return boom
	})
	require.True(t, errors.Is(err, errs.ErrInvalidReturnValue))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestExtraClockRuns(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	ticks := 0
	cl := clock.NewClock(fixed.FromSamples(441), func(*clock.Tick) error {
		ticks++
		return nil
	})
	require.NoError(t, ctx.AttachClock(cl))
	require.True(t, errors.Is(ctx.AttachClock(cl), errs.ErrInvalidState))
	_, err = ctx.Generate(make([]int16, 4410), 4410)
	require.NoError(t, err)
	require.Equal(t, 10, ticks)

	ctx.DetachClock(cl)
	_, err = ctx.Generate(make([]int16, 4410), 4410)
	require.NoError(t, err)
	require.Equal(t, 10, ticks)
}

func TestResetRestartsClocks(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	fired := 0
	require.NoError(t, ctx.AttachDivider(clock.NewDivider(1, func(*clock.Tick) error {
		fired++
		return nil
	}), GroupBeat))
	_, err = ctx.Generate(make([]int16, 100), 100)
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	ctx.Reset()
	require.Equal(t, fixed.Time(0), ctx.Time())
	_, err = ctx.Generate(make([]int16, 1), 1)
	require.NoError(t, err)
	require.Equal(t, 2, fired)
}

func TestRunBounds(t *testing.T) {
	ctx, err := NewContext(44100, 1)
	require.NoError(t, err)
	require.True(t, errors.Is(ctx.Run(fixed.FromSamples(MaxGenerateSamples+1)), errs.ErrInvalidValue))
	require.NoError(t, ctx.Run(fixed.FromSamples(10)))
	require.True(t, errors.Is(ctx.Run(fixed.FromSamples(5)), errs.ErrInvalidValue))
	require.NoError(t, ctx.End(fixed.FromSamples(20)))
	out := make([]int16, 20)
	require.Equal(t, 20, ctx.Read(out, 20))
}
