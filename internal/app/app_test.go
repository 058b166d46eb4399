package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/client"
	"github.com/S0me0neR0man/simbook/internal/config"
	"github.com/S0me0neR0man/simbook/internal/phonebook"
	"github.com/S0me0neR0man/simbook/internal/record"
)

func testFiles() []config.FileConfig {
	layout := record.Layout{Groups: []record.Group{
		{Size: 2, Columns: []record.ColumnSpec{
			{Column: record.ColumnEmail, Files: 1, Indirect: true, Slots: 2},
		}},
	}}
	bob := record.New("Bob", "2")
	bob.Emails = []string{"bob@x"}

	return []config.FileConfig{
		{FileGroup: record.EFAdn, Size: 3, RecordLength: 28, Seed: []record.Record{record.New("Alice", "1"), {}, record.New("Carol", "3")}},
		{FileGroup: record.EFFdn, Size: 2, RecordLength: 28, AuthCode: "1234", Seed: []record.Record{record.New("Police", "112")}},
		{FileGroup: record.EFPbr, RecordLength: 30, Layout: &layout, Seed: []record.Record{{}, bob}},
	}
}

func startBook(t *testing.T, transport card.Transport, logger *zap.Logger) *phonebook.PhoneBook {
	t.Helper()
	c := cache.New(transport, logger)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return phonebook.New(c, logger, phonebook.WithAuthorizer(restricted([]int{record.EFFdn})))
}

func TestSeed_Memory(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	files := testFiles()
	transport, closeCard, err := OpenCard(config.CardConfig{Backend: config.BackendMemory, Files: files}, logger)
	require.NoError(t, err)
	defer closeCard()

	book := startBook(t, transport, logger)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, book, files, logger))

	adn, err := book.Records(ctx, record.EFAdn)
	require.NoError(t, err)
	require.Equal(t, "Alice", adn[0].Tag)
	require.True(t, adn[1].IsEmpty())
	require.Equal(t, "Carol", adn[2].Tag)

	fdn, err := book.Records(ctx, record.EFFdn)
	require.NoError(t, err)
	require.Equal(t, "Police", fdn[0].Tag)

	pbr, err := book.Records(ctx, record.EFPbr)
	require.NoError(t, err)
	require.Equal(t, []string{"bob@x"}, pbr[1].Emails)

	// seeding again leaves the records alone
	_, err = book.UpdateByIndex(ctx, record.EFAdn, record.New("Alice", "9"), 1, "")
	require.NoError(t, err)
	require.NoError(t, Seed(ctx, book, files, logger))
	adn, err = book.Records(ctx, record.EFAdn)
	require.NoError(t, err)
	require.Equal(t, "9", adn[0].Number)
}

func TestOpenCard_PebbleKeepsFiles(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := config.CardConfig{Backend: config.BackendPebble, Dir: t.TempDir(), Files: testFiles()}

	transport, closeCard, err := OpenCard(cfg, logger)
	require.NoError(t, err)
	book := startBook(t, transport, logger)
	require.NoError(t, Seed(context.Background(), book, cfg.Files, logger))
	_, err = book.UpdateByIndex(context.Background(), record.EFAdn, record.New("Dave", "4"), 2, "")
	require.NoError(t, err)
	require.NoError(t, closeCard())

	transport, closeCard, err = OpenCard(cfg, logger)
	require.NoError(t, err)
	defer closeCard()

	done := make(chan card.Contents, 1)
	transport.ReadAll(record.EFAdn, record.EFExt1, func(c card.Contents, err error) {
		assert.NoError(t, err)
		done <- c
	})
	c := <-done
	require.Equal(t, "Alice", c.Records[0].Tag)
	require.Equal(t, "Dave", c.Records[1].Tag)

	_, _, err = OpenCard(config.CardConfig{Backend: "sim"}, logger)
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.GRPCAddr = "127.0.0.1:32017"
	cfg.MetricsAddr = ""
	cfg.Card.Latency = 0
	cfg.Card.Files = testFiles()

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- Run(ctx, cfg, logger)
	}()

	cl, err := client.NewGRPClient(cfg.GRPCAddr)
	require.NoError(t, err)
	defer cl.Close()

	require.Eventually(t, func() bool {
		list, err := cl.Load(ctx, record.EFAdn)
		return err == nil && list[0].Tag == "Alice"
	}, 5*time.Second, 20*time.Millisecond)

	_, err = cl.UpdateByIndex(ctx, record.EFFdn, record.New("A", "1"), 2, "")
	require.Error(t, err)
	_, err = cl.UpdateByIndex(ctx, record.EFFdn, record.New("A", "1"), 2, "1234")
	require.NoError(t, err)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
