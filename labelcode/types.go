package labelcode

import "strings"

// Equipment types, one per label template.
const (
	TypeElectrical       = "inspection_electrique"
	TypeThermography     = "inspection_thermographie"
	TypeLocalID          = "identification_local"
	TypeElevator         = "ascenseur"
	TypePeriodic         = "verification_periodique"
	TypeExtinguisher     = "verification_extincteur"
	TypeArcFlash         = "arc_flash"
	TypeIdentification   = "plaque_identification"
	DefaultPrefix        = "EQU"
	DefaultEquipmentType = TypeElectrical
)

var prefixes = map[string]string{
	TypeElectrical:     "IEL",
	TypeThermography:   "ITH",
	TypeLocalID:        "LOC",
	TypeElevator:       "ASC",
	TypePeriodic:       "VPE",
	TypeExtinguisher:   "VEX",
	TypeArcFlash:       "ARC",
	TypeIdentification: "PID",
}

var templateKeys = map[string]string{
	TypeElectrical:     "label_template_iec",
	TypeThermography:   "label_template_vti",
	TypeLocalID:        "label_template_le",
	TypeElevator:       "label_template_vgpa",
	TypePeriodic:       "label_template_vpge",
	TypeExtinguisher:   "label_template_ienc",
	TypeArcFlash:       "label_template_vcie",
	TypeIdentification: "label_template_vgpeis",
}

// EquipmentTypes lists the known types in display order.
var EquipmentTypes = []string{
	TypeElectrical, TypeThermography, TypeLocalID, TypeElevator,
	TypePeriodic, TypeExtinguisher, TypeArcFlash, TypeIdentification,
}

func IsEquipmentType(t string) bool {
	_, ok := prefixes[t]
	return ok
}

// PrefixFor returns the code abbreviation of an equipment type.
func PrefixFor(equipmentType string) string {
	if p, ok := prefixes[equipmentType]; ok {
		return p
	}
	return DefaultPrefix
}

// TemplateKeyFor returns the key of the label template used for an equipment type,
// or "" when the type has none.
func TemplateKeyFor(equipmentType string) string {
	return templateKeys[equipmentType]
}

// TypeFromProductName guesses the equipment type from a product name.
// Order matters: the first matching keyword wins.
func TypeFromProductName(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "electrique"):
		return TypeElectrical
	case strings.Contains(n, "thermographie"), strings.Contains(n, "thermographique"):
		return TypeThermography
	case strings.Contains(n, "ascenseur"):
		return TypeElevator
	case strings.Contains(n, "extincteur"):
		return TypeExtinguisher
	case strings.Contains(n, "local"):
		return TypeLocalID
	case strings.Contains(n, "periodique"):
		return TypePeriodic
	case strings.Contains(n, "arc") && strings.Contains(n, "flash"):
		return TypeArcFlash
	case strings.Contains(n, "plaque"):
		return TypeIdentification
	default:
		return DefaultEquipmentType
	}
}
