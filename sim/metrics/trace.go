package metrics

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var traceHeader = []string{"op_id", "type", "latency_us", "reads", "writes", "cas", "sends", "recvs", "bytes_r", "bytes_w"}

// Trace is an optional per-operation CSV writer, opened once per
// workload run when tracing is enabled in the metrics config.
type Trace struct {
	file *os.File
	w    *csv.Writer
}

// OpenTrace creates path and writes the trace header. If the file cannot
// be created it logs with logrus.Fatalf, which exits the process.
func OpenTrace(path string) *Trace {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		logrus.Fatalf("Error creating trace file %s: %v\n", path, err)
		return nil
	}
	w := csv.NewWriter(f)
	if err := w.Write(traceHeader); err != nil {
		logrus.Fatalf("Error writing trace header to %s: %v\n", path, err)
	}
	return &Trace{file: f, w: w}
}

// WriteRow appends one operation's outcome to the trace.
func (t *Trace) WriteRow(opID uint64, opType string, latUS float64, reads, writes, cas, sends, recvs, bytesR, bytesW uint64) {
	row := []string{
		fmt.Sprintf("%d", opID),
		opType,
		fmt.Sprintf("%.3f", latUS),
		fmt.Sprintf("%d", reads),
		fmt.Sprintf("%d", writes),
		fmt.Sprintf("%d", cas),
		fmt.Sprintf("%d", sends),
		fmt.Sprintf("%d", recvs),
		fmt.Sprintf("%d", bytesR),
		fmt.Sprintf("%d", bytesW),
	}
	if err := t.w.Write(row); err != nil {
		logrus.Errorf("Error writing trace row: %v\n", err)
	}
}

// Close flushes and closes the underlying trace file.
func (t *Trace) Close() {
	if t == nil {
		return
	}
	t.w.Flush()
	if err := t.file.Close(); err != nil {
		logrus.Fatalf("Error closing trace file: %v\n", err)
	}
}
