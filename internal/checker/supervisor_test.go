package checker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	createState = "create"
	splitState  = "split"
	road1State  = "road1"
	road2State  = "road2"
)

func check(before DataToBeVerified, after DataToBeVerified) error {
	if !reflect.DeepEqual(before.Data, after.Data) {
		return fmt.Errorf("check error: %v not equal %v", before, after)
	}
	return nil
}

func TestStateSupervisor_Go(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	super := NewStateSupervisor(logger)

	create := NewState(createState, 1, logger)
	create.SetCheckFunc(check)
	split := NewState(splitState, 2, logger)
	split.SetCheckFunc(check)
	road1 := NewState(road1State, 1, logger)
	road1.SetCheckFunc(check)
	road2 := NewState(road2State, 1, logger)
	road2.SetCheckFunc(check)

	create.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		data.NextState = splitState
		return data, nil
	})
	split.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		switch rand.Intn(2) {
		case 0:
			data.NextState = road1State
		case 1:
			data.NextState = road2State
		}
		return data, nil
	})
	road1.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		data.NextState = ""
		return data, nil
	})
	road2.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		data.Data = 0
		data.NextState = ""
		return data, nil
	})

	require.ErrorIs(t, super.Go(context.Background()), ErrNotInitialized)

	super.SetGenDataFunc(func(context.Context) (DataToBeVerified, error) {
		return DataToBeVerified{NextState: createState, Data: 101}, nil
	})
	require.NoError(t, super.Add(create, split, road1, road2))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, super.Go(ctx))
	super.Wait()

	require.Positive(t, create.Passed())
	require.Zero(t, create.Failed())
	require.Positive(t, road1.Passed())
	require.Zero(t, road1.Failed())
	require.Positive(t, road2.Failed())
	require.Zero(t, road2.Passed())
	require.Len(t, super.States(), 4)
}

func TestStateSupervisor_Failures(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	super := NewStateSupervisor(logger)
	super.SetInterval(time.Millisecond)

	flaky := NewState("flaky", 1, logger)
	n := 0
	flaky.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		n++
		if n%2 == 0 {
			return data, errors.New("even")
		}
		data.NextState = "missing"
		return data, nil
	})
	super.SetGenDataFunc(func(context.Context) (DataToBeVerified, error) {
		return DataToBeVerified{NextState: "flaky"}, nil
	})
	require.NoError(t, super.Add(flaky))
	require.Error(t, super.Add(nil))

	noop := NewState("noop", 1, logger)
	require.NoError(t, super.Add(noop))
	require.ErrorIs(t, super.Go(context.Background()), ErrNotInitialized)
	noop.SetDoFunc(func(_ context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		return data, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, super.Go(ctx))
	super.Wait()

	require.Positive(t, flaky.Passed())
	require.Positive(t, flaky.Failed())
}
