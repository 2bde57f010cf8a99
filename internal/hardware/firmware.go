package hardware

import (
	"path/filepath"
)

// FirmwareRequirement names the firmware a driver loads at probe time.
type FirmwareRequirement struct {
	Package string
	Pattern string // glob below /lib/firmware
}

var firmwareByDriver = map[string]FirmwareRequirement{
	"bnx2":         {"kernel-firmware-bnx2", "bnx2"},
	"bnx2x":        {"kernel-firmware-bnx2", "bnx2x"},
	"tg3":          {"kernel-firmware-broadcom", "tigon"},
	"r8169":        {"kernel-firmware-realtek", "rtl_nic"},
	"rtw88_8822ce": {"kernel-firmware-realtek", "rtw88"},
	"iwlwifi":      {"kernel-firmware-iwlwifi", "iwlwifi-*"},
	"ath10k_pci":   {"kernel-firmware-atheros", "ath10k"},
	"ath11k_pci":   {"kernel-firmware-atheros", "ath11k"},
	"brcmfmac":     {"kernel-firmware-brcm", "brcm"},
	"qed":          {"kernel-firmware-qlogic", "qed"},
	"qede":         {"kernel-firmware-qlogic", "qed"},
	"bna":          {"kernel-firmware-qlogic", "bna"},
	"mt7921e":      {"kernel-firmware-mediatek", "mediatek"},
	"ice":          {"kernel-firmware-intel", "intel/ice"},
}

// FirmwareHint returns the firmware the driver needs, if any.
func FirmwareHint(driver string) (FirmwareRequirement, bool) {
	fw, ok := firmwareByDriver[driver]
	return fw, ok
}

// Installed reports whether any firmware file matching the requirement
// exists below root.
func (f FirmwareRequirement) Installed(root string) bool {
	matches, err := filepath.Glob(filepath.Join(root, "lib", "firmware", f.Pattern))
	return err == nil && len(matches) > 0
}
