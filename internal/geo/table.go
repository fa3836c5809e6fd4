// Package geo holds the region → provincia → municipio → distrito → sector
// lookup tables and the validation of a location against them.
package geo

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

//go:embed default_table.yaml
var defaultTable []byte

// Lookup answers which values are valid beneath a parent level.
// A nil slice means the table has no list for that parent.
type Lookup interface {
	Regiones() []string
	Provincias(region string) []string
	Municipios(provincia string) []string
	Distritos(municipio string) []string
	Sectores(distrito string) []string
}

// Table is a Lookup backed by static lists.
type Table struct {
	ProvinciasPorRegion    map[string][]string `yaml:"provinciasPorRegion"`
	MunicipiosPorProvincia map[string][]string `yaml:"municipiosPorProvincia"`
	DistritosPorMunicipio  map[string][]string `yaml:"distritosPorMunicipio"`
	SectoresPorDistrito    map[string][]string `yaml:"sectoresPorDistrito"`
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("geo: embedded table is invalid: %v", err))
	}
	return t
}

// LoadTable reads a YAML table from path. An empty path yields the embedded table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lectura tabla geográfica %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decodificación tabla geográfica: %w", err)
	}
	if len(t.ProvinciasPorRegion) == 0 {
		return nil, fmt.Errorf("tabla geográfica sin regiones")
	}
	return &t, nil
}

func (t *Table) Regiones() []string {
	out := make([]string, 0, len(t.ProvinciasPorRegion))
	for r := range t.ProvinciasPorRegion {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (t *Table) Provincias(region string) []string { return t.ProvinciasPorRegion[region] }

func (t *Table) Municipios(provincia string) []string { return t.MunicipiosPorProvincia[provincia] }

func (t *Table) Distritos(municipio string) []string { return t.DistritosPorMunicipio[municipio] }

func (t *Table) Sectores(distrito string) []string { return t.SectoresPorDistrito[distrito] }

// ValidateHierarchy checks that every non-empty level belongs to its parent.
// Region and provincia are always checked. Deeper levels are checked only when
// the table lists children for the parent, since the field form accepts a
// custom distrito or sector where the table has none.
func ValidateHierarchy(l Lookup, region, provincia, municipio, distrito, sector string) error {
	region, provincia = strings.TrimSpace(region), strings.TrimSpace(provincia)
	municipio, distrito, sector = strings.TrimSpace(municipio), strings.TrimSpace(distrito), strings.TrimSpace(sector)

	if region != "" {
		canonical, ok := match(l.Regiones(), region)
		if !ok {
			return models.NewValidationError(models.FieldClassJerarquia, "la región %q no existe", region)
		}
		region = canonical
	}
	if provincia != "" {
		if region == "" {
			return models.NewValidationError(models.FieldClassJerarquia, "provincia %q sin región", provincia)
		}
		canonical, ok := match(l.Provincias(region), provincia)
		if !ok {
			return models.NewValidationError(models.FieldClassJerarquia, "la provincia %q no pertenece a la región %q", provincia, region)
		}
		provincia = canonical
	}

	var err error
	if municipio, err = checkChild(l.Municipios, provincia, municipio, "municipio", "provincia"); err != nil {
		return err
	}
	if distrito, err = checkChild(l.Distritos, municipio, distrito, "distrito", "municipio"); err != nil {
		return err
	}
	_, err = checkChild(l.Sectores, distrito, sector, "sector", "distrito")
	return err
}

// checkChild returns the canonical spelling of child when the parent has a list.
func checkChild(children func(string) []string, parent, child, childLevel, parentLevel string) (string, error) {
	if child == "" {
		return "", nil
	}
	if parent == "" {
		return "", models.NewValidationError(models.FieldClassJerarquia, "%s %q sin %s", childLevel, child, parentLevel)
	}
	list := children(parent)
	if list == nil {
		return child, nil
	}
	canonical, ok := match(list, child)
	if !ok {
		return "", models.NewValidationError(models.FieldClassJerarquia, "el %s %q no pertenece al %s %q", childLevel, child, parentLevel, parent)
	}
	return canonical, nil
}

func match(list []string, v string) (string, bool) {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item, true
		}
	}
	return "", false
}
