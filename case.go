package gridflow

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gridflow/types"

	"gopkg.in/yaml.v3"
)

// Load 加载 YAML 格式算例
func Load(filename string) (*types.Case, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	c, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// Decode 解码算例并填充缺省值
func Decode(r io.Reader) (*types.Case, error) {
	c := &types.Case{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, err
	}
	fill(c)
	return c, c.Validate()
}

// fill 缺省值: 基准容量、电压初值与限值、机组设定
func fill(c *types.Case) {
	if c.BaseMVA == 0 {
		c.BaseMVA = types.DefaultBaseMVA
	}
	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Vm == 0 {
			b.Vm = 1
		}
		if b.VMin == 0 && b.VMax == 0 {
			b.VMin, b.VMax = types.DefaultVoltageMin, types.DefaultVoltageMax
		}
	}
	for i := range c.Generators {
		g := &c.Generators[i]
		if g.Vg == 0 {
			g.Vg = 1
		}
		if g.MBase == 0 {
			g.MBase = c.BaseMVA
		}
	}
}

// Export 导出 YAML 格式算例(含求解结果)
func Export(c *types.Case, filename string) error {
	var buf bytes.Buffer
	if err := Encode(c, &buf); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0o644)
}

// Encode 编码算例
func Encode(c *types.Case, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
