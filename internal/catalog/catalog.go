// Package catalog reads and writes room catalog files (.yaml, .yml, .xlsx) and imports them.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

// Columns is the header row of a spreadsheet catalog.
var Columns = []string{"id", "name", "capacity", "location", "equipment", "description"}

const equipmentSeparator = ";"

// catalogNamespace derives stable IDs for catalog rooms that do not set one.
var catalogNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hyperjump.tech/roomfinder/catalog"))

// File is the YAML catalog layout.
type File struct {
	Rooms []models.RoomInput `yaml:"rooms"`
}

// LoadFile reads the rooms in a catalog file. Rooms without an ID get one derived from their name,
// so importing the same file twice updates instead of duplicating.
func LoadFile(path string) ([]models.RoomInput, error) {
	var (
		rooms []models.RoomInput
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		rooms, err = loadYAML(path)
	case ".xlsx":
		rooms, err = loadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: unsupported catalog format %q", errs.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if strings.TrimSpace(rooms[i].ID) == "" && strings.TrimSpace(rooms[i].Name) != "" {
			rooms[i].ID = StableID(rooms[i].Name)
		}
	}
	return rooms, nil
}

// StableID returns the ID a catalog room named name gets when it has none.
func StableID(name string) string {
	return uuid.NewSHA1(catalogNamespace, []byte(strings.ToLower(strings.TrimSpace(name)))).String()
}

func loadYAML(path string) ([]models.RoomInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse catalog: %w", errs.ErrInvalidInput, err)
	}
	return f.Rooms, nil
}

func loadXLSX(path string) ([]models.RoomInput, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: catalog has no sheets", errs.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("%w: catalog header has no name column", errs.ErrInvalidInput)
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rooms []models.RoomInput
	for n, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		room := models.RoomInput{
			ID:          cell(row, "id"),
			Name:        cell(row, "name"),
			Location:    cell(row, "location"),
			Description: cell(row, "description"),
		}
		if c := cell(row, "capacity"); c != "" {
			capacity, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: capacity %q is not a number", errs.ErrInvalidInput, n+2, c)
			}
			room.Capacity = capacity
		}
		if e := cell(row, "equipment"); e != "" {
			for _, item := range strings.Split(e, equipmentSeparator) {
				if item = strings.TrimSpace(item); item != "" {
					room.Equipment = append(room.Equipment, item)
				}
			}
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// SaveFile writes rooms to path in the format given by its extension.
func SaveFile(path string, rooms []*models.Room) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return saveYAML(path, rooms)
	case ".xlsx":
		return saveXLSX(path, rooms)
	default:
		return fmt.Errorf("%w: unsupported catalog format %q", errs.ErrInvalidInput, ext)
	}
}

func toInputs(rooms []*models.Room) []models.RoomInput {
	out := make([]models.RoomInput, len(rooms))
	for i, r := range rooms {
		out[i] = models.RoomInput{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Capacity:    r.Capacity,
			Equipment:   r.Equipment,
			Location:    r.Location,
		}
	}
	return out
}

func saveYAML(path string, rooms []*models.Room) error {
	data, err := yaml.Marshal(File{Rooms: toInputs(rooms)})
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func saveXLSX(path string, rooms []*models.Room) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rooms {
		row := []interface{}{r.ID, r.Name, r.Capacity, r.Location, strings.Join(r.Equipment, equipmentSeparator), r.Description}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}
