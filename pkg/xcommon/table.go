package xcommon

import (
	"context"
	"fmt"

	"github.com/liushuochen/gotable"
	"go.uber.org/zap"

	"udpdelay/pkg/xlog"
)

func RenderTable(keys []string, values [][]string) (string, error) {
	table, err := gotable.CreateSafeTable(keys...)
	if err != nil {
		return "", err
	}
	for _, vs := range values {
		if err := table.AddRow(vs); err != nil {
			return "", err
		}
	}
	return fmt.Sprint(table), nil
}

func PrintTable(ctx context.Context, keys []string, values [][]string) {
	out, err := RenderTable(keys, values)
	if err != nil {
		xlog.Get(ctx).Warn("Print table failed.", zap.Any("err", err))
		return
	}
	fmt.Println(out)
}
