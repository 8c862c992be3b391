package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrRoundBusy 同一活动已有分组操作在进行
var ErrRoundBusy = errors.New("该活动正在进行分组操作，请稍后重试")
