package model

import "strconv"

// Feeder is the live device record returned by the vendor API. Only the
// fields the monitor uses are mapped; battery_voltage arrives as a string of
// millivolts.
type Feeder struct {
	ThingName          string `json:"thing_name"`
	ProductName        string `json:"product_name"`
	IsFoodLow          bool   `json:"is_food_low"`
	ConnectionStatus   int    `json:"connection_status"`
	IsAdapterInstalled bool   `json:"is_adapter_installed"`
	BatteryVoltage     string `json:"battery_voltage"`
	Settings           struct {
		FriendlyName string `json:"friendly_name"`
	} `json:"settings"`
}

// Connected reports whether the device is currently online (status 2 in the
// vendor API).
func (f *Feeder) Connected() bool {
	return f.ConnectionStatus == 2
}

// BatteryVolts converts the raw millivolt string to volts, 0 if unparsable.
func (f *Feeder) BatteryVolts() float64 {
	mv, err := strconv.ParseFloat(f.BatteryVoltage, 64)
	if err != nil {
		return 0
	}
	return mv / 1000
}

// Name returns the friendly name if set, otherwise the serial.
func (f *Feeder) Name() string {
	if f.Settings.FriendlyName != "" {
		return f.Settings.FriendlyName
	}
	return f.ThingName
}
