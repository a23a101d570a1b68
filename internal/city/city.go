// 包 city：已访问城市的数据模型及其 JSON 形态，客户端与城市存储服务共用
package city

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID：由存储服务分配的城市标识
// 约束：JSON 中可为数字或数字字符串（不同存储实现两种都会返回），统一按数值比较
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero：零值表示“尚未分配/当前无选中城市”
func (id ID) IsZero() bool { return id == 0 }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		v, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = v
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("city id: %w", err)
	}
	v, err := ParseID(n.String())
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// ParseID：将路由参数等文本转换为 ID；非整数返回错误
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("city id %q: %w", s, err)
	}
	return ID(v), nil
}

// Date：到访日期
// 约束：解码接受 2006-01-02 与 RFC3339 两种格式；编码统一输出 UTC 的 RFC3339
type Date struct{ time.Time }

func NewDate(t time.Time) Date { return Date{Time: t} }

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// City：一次到访记录
// 约束：入库后视为不可变；集合状态只做整体替换、追加或按 ID 删除
type City struct {
	ID       ID       `json:"id,omitempty"`
	CityName string   `json:"cityName"`
	Country  string   `json:"country"`
	Emoji    string   `json:"emoji"`
	Date     Date     `json:"date"`
	Notes    string   `json:"notes"`
	Position Position `json:"position"`
}

// IsEmpty：未选中城市时 CurrentCity 为零值
func (c City) IsEmpty() bool { return c.ID.IsZero() && c.CityName == "" }
