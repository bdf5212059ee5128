package view

// Intent：界面事件产生的意图，由 Session.Dispatch 统一应用
type Intent interface {
	intent()
}

// SetYears：替换已选年份
type SetYears struct{ Years []string }

// ToggleYear：勾选/取消单个年份
type ToggleYear struct{ Year string }

// SetVillage：空字符串表示不限村庄
type SetVillage struct{ Village string }

// Search：按钮与回车触发同一意图
type Search struct{ Term string }

type ToggleBoundaries struct{ Show bool }

// Hover：标记悬停进入/离开
type Hover struct {
	ID string
	On bool
}

// SetOpacity：某年份项目标记的不透明度（0..1）
type SetOpacity struct {
	Year    string
	Opacity float64
}

func (SetYears) intent()         {}
func (ToggleYear) intent()       {}
func (SetVillage) intent()       {}
func (Search) intent()           {}
func (ToggleBoundaries) intent() {}
func (Hover) intent()            {}
func (SetOpacity) intent()       {}
