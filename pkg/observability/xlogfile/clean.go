package xlogfile

import (
	"context"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/util/xfile"
)

// ClearAll 删除全部日志文件，返回实际删除的文件数
//
// 文件已不存在不算错误，其他删除失败跳过并通过 OnError 上报，因此重复调用总是成功。
// 在本任务之前提交的追加会被删除，之后提交的追加会保留。导出文件不受影响。
func (s *Store) ClearAll() *Future[int] {
	return submit(s, "clear_all", func(ctx context.Context) (int, error) {
		artifacts, err := s.scan()
		if err != nil {
			return 0, err
		}

		removed := 0
		for _, a := range artifacts {
			ok, err := xfile.RemoveIfExists(a.Path)
			if err != nil {
				s.report(&WriteError{Op: "remove", Path: a.Path, Err: err})
				continue
			}
			if ok {
				removed++
			}
		}
		if removed > 0 {
			s.logger.Info(ctx, "logs cleared", xlog.Count(int64(removed)))
		}
		return removed, nil
	})
}
