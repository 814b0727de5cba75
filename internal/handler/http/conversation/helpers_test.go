package conversation_test

import (
	"io"
	"log/slog"
	"strconv"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
