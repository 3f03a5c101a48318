package metrics

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var summaryHeader = []string{
	"index", "workload", "ops", "p50_us", "p95_us", "p99_us",
	"reads", "writes", "cas", "sends", "recvs", "bytes_r", "bytes_w",
}

// AppendSummary appends one workload's result row to path, writing the
// header first if the file does not yet exist.
func (m *Metrics) AppendSummary(path, indexKind, workloadName string) {
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		logrus.Fatalf("Error opening summary file %s: %v\n", path, err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logrus.Fatalf("Error closing summary file %s: %v\n", path, closeErr)
		}
	}()

	w := csv.NewWriter(f)
	defer w.Flush()

	if needsHeader {
		if err := w.Write(summaryHeader); err != nil {
			logrus.Fatalf("Error writing summary header to %s: %v\n", path, err)
		}
	}

	row := []string{
		indexKind,
		workloadName,
		fmt.Sprintf("%d", m.Ops),
		fmt.Sprintf("%.3f", m.Percentile(50)),
		fmt.Sprintf("%.3f", m.Percentile(95)),
		fmt.Sprintf("%.3f", m.Percentile(99)),
		fmt.Sprintf("%d", m.RemoteReads),
		fmt.Sprintf("%d", m.RemoteWrites),
		fmt.Sprintf("%d", m.RemoteCAS),
		fmt.Sprintf("%d", m.SendOps),
		fmt.Sprintf("%d", m.RecvOps),
		fmt.Sprintf("%d", m.BytesRead),
		fmt.Sprintf("%d", m.BytesWrite),
	}
	if err := w.Write(row); err != nil {
		logrus.Fatalf("Error writing summary row to %s: %v\n", path, err)
	}
}
