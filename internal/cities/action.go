package cities

import "worldwise/internal/city"

// Action：城市集合状态的六种变更
// 约束：封闭接口（未导出方法），Reduce 对全部变体逐一处理；包外无法新增变体
type Action interface {
	Kind() string
	action()
}

type Loading struct{}

type CitiesLoaded struct{ Cities []city.City }

type CityCreated struct{ City city.City }

type CityDeleted struct{ ID city.ID }

type CityLoaded struct{ City city.City }

type Rejected struct{ Message string }

func (Loading) Kind() string      { return "loading" }
func (CitiesLoaded) Kind() string { return "cities/loaded" }
func (CityCreated) Kind() string  { return "city/created" }
func (CityDeleted) Kind() string  { return "city/deleted" }
func (CityLoaded) Kind() string   { return "city/loaded" }
func (Rejected) Kind() string     { return "rejected" }

func (Loading) action()      {}
func (CitiesLoaded) action() {}
func (CityCreated) action()  {}
func (CityDeleted) action()  {}
func (CityLoaded) action()   {}
func (Rejected) action()     {}
