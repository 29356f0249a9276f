package order

import (
	"fmt"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

var legalTransitions = map[StateTransition]bool{
	{StatusPending, StatusResting}: true,
	{StatusPending, StatusFilled}:  true, // 确认前已完全成交

	{StatusResting, StatusResting}:   true, // 部分成交
	{StatusResting, StatusCancelled}: true,
	{StatusResting, StatusFilled}:    true,

	// 终态不能转换（FILLED, CANCELLED）
}

// ValidateTransition 验证状态转换是否合法
func ValidateTransition(from, to Status) error {
	if !legalTransitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinal 判断是否是终态
func IsFinal(status Status) bool {
	return status == StatusFilled || status == StatusCancelled
}

// IsActive 判断订单是否仍由 Manager 持有
func IsActive(status Status) bool {
	return status == StatusPending || status == StatusResting
}

// transition 校验后修改订单状态。
func transition(o *Order, to Status) error {
	if err := ValidateTransition(o.Status, to); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = to
	return nil
}
