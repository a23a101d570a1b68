// 包 cities：已访问城市集合的客户端状态机，与远端城市存储服务保持同步
package cities

import (
	"fmt"

	"worldwise/internal/city"
	"worldwise/internal/errs"
)

// State：城市集合状态
// 约束：Error 只由 Rejected 写入，后续成功不会清除；CurrentCity 零值表示未选中
type State struct {
	Cities      []city.City
	IsLoading   bool
	CurrentCity city.City
	Error       string
}

// Reduce：纯函数状态迁移，不修改入参 s 的切片底层数组
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Loading:
		s.IsLoading = true
	case CitiesLoaded:
		s.IsLoading = false
		s.Cities = append([]city.City{}, a.Cities...)
	case CityCreated:
		s.IsLoading = false
		next := make([]city.City, 0, len(s.Cities)+1)
		s.Cities = append(append(next, s.Cities...), a.City)
		s.CurrentCity = a.City
	case CityDeleted:
		s.IsLoading = false
		kept := make([]city.City, 0, len(s.Cities))
		for _, c := range s.Cities {
			if c.ID != a.ID {
				kept = append(kept, c)
			}
		}
		s.Cities = kept
	case CityLoaded:
		s.IsLoading = false
		s.CurrentCity = a.City
	case Rejected:
		s.IsLoading = false
		s.Error = a.Message
	default:
		panic(errs.Usage("cities.Reduce", fmt.Sprintf("unknown action %T", a)))
	}
	return s
}

func (s State) clone() State {
	out := s
	if s.Cities != nil {
		out.Cities = append([]city.City{}, s.Cities...)
	}
	return out
}
