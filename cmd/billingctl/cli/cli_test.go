package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/jobs"
)

const twoBags = `[{"product_id": 11, "quantity": "2", "unit_price": "150.00"}]`

func TestBreakdownInclusiveJSON(t *testing.T) {
	out := new(bytes.Buffer)
	err := RunBreakdown(strings.NewReader(twoBags), out, BreakdownOptions{
		Mode:       "tax_inclusive",
		Rate:       "0.18",
		JSONOutput: true,
	})
	require.NoError(t, err)

	var agg billing.Aggregation
	require.NoError(t, json.Unmarshal(out.Bytes(), &agg))
	require.Len(t, agg.Lines, 1)
	require.Equal(t, "254.23", agg.Subtotal.String())
	require.Equal(t, "45.77", agg.Tax.String())
	require.Equal(t, "300.00", agg.Total.String())
}

func TestBreakdownExclusiveTable(t *testing.T) {
	out := new(bytes.Buffer)
	lines := `[{"product_id": 3, "quantity": "3", "unit_price": "10.00"}]`
	err := RunBreakdown(strings.NewReader(lines), out, BreakdownOptions{Mode: "TAX_EXCLUSIVE", Rate: "0.18"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "SUBTOTAL")
	require.Contains(t, out.String(), "30.00")
	require.Contains(t, out.String(), "5.40")
	require.Contains(t, out.String(), "35.40")
}

func TestBreakdownRejectsBadInput(t *testing.T) {
	err := RunBreakdown(strings.NewReader(twoBags), new(bytes.Buffer), BreakdownOptions{Mode: "GROSS", Rate: "0.18"})
	require.ErrorIs(t, err, billing.ErrInvalidArgument)

	err = RunBreakdown(strings.NewReader(twoBags), new(bytes.Buffer), BreakdownOptions{Mode: "TAX_INCLUSIVE", Rate: "-0.18"})
	require.Error(t, err)

	err = RunBreakdown(strings.NewReader(`{"lines":`), new(bytes.Buffer), BreakdownOptions{Mode: "TAX_INCLUSIVE", Rate: "0.18"})
	require.ErrorContains(t, err, "decode lines")

	negative := `[{"product_id": 1, "quantity": "-1", "unit_price": "10.00"}]`
	err = RunBreakdown(strings.NewReader(negative), new(bytes.Buffer), BreakdownOptions{Mode: "TAX_INCLUSIVE", Rate: "0.18"})
	require.ErrorIs(t, err, billing.ErrInvalidArgument)
}

func TestBreakdownCommandReadsStdin(t *testing.T) {
	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetIn(strings.NewReader(twoBags))
	root.SetOut(out)
	root.SetArgs([]string{"breakdown", "--json", "--mode", "TAX_EXCLUSIVE", "--rate", "0.10"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var agg billing.Aggregation
	require.NoError(t, json.Unmarshal(out.Bytes(), &agg))
	require.Equal(t, "300.00", agg.Subtotal.String())
	require.Equal(t, "30.00", agg.Tax.String())
	require.Equal(t, "330.00", agg.Total.String())
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"jobs", "trigger"},
		{"jobs", "stats"},
		{"breakdown"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestJobsCLIBuildTask(t *testing.T) {
	c := &JobsCLI{retention: 48 * time.Hour}

	task, err := c.BuildTask(jobs.TaskIdempotencyCleanup)
	require.NoError(t, err)
	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 48, payload.RetentionHours)

	task, err = c.BuildTask(jobs.TaskOverdueScan)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskOverdueScan, task.Type())

	_, err = c.BuildTask(jobs.TaskDocumentStatusChanged)
	require.ErrorContains(t, err, "unsupported job")
}

func TestJobsCLINotConfigured(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskOverdueScan)
	require.Error(t, err)
	_, err = (&JobsCLI{}).InspectQueue(context.Background())
	require.Error(t, err)
}
