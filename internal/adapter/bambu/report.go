// Package bambu implements the Bambu printer family: the vendor report
// schema, the frame decoder, the status normalizer, and the MQTT
// protocol client.
package bambu

// report is the top-level envelope of a report-topic frame. Exactly one
// of the keys is present per frame.
type report struct {
	Print  *ReportPrint   `json:"print"`
	Info   *ReportInfo    `json:"info"`
	System map[string]any `json:"system"`
}

// ReportPrint is the vendor print telemetry payload. The device reports
// deltas, not snapshots: nearly every field may be absent on any given
// frame, so everything is a pointer.
type ReportPrint struct {
	GcodeState         *string  `json:"gcode_state"`
	PrintError         *int64   `json:"print_error"`
	McPercent          *int     `json:"mc_percent"`
	McRemainingTime    *int     `json:"mc_remaining_time"`
	LayerNum           *int     `json:"layer_num"`
	TotalLayerNum      *int     `json:"total_layer_num"`
	NozzleTemper       *float64 `json:"nozzle_temper"`
	NozzleTargetTemper *float64 `json:"nozzle_target_temper"`
	BedTemper          *float64 `json:"bed_temper"`
	BedTargetTemper    *float64 `json:"bed_target_temper"`
	ChamberTemper      *float64 `json:"chamber_temper"`
	WifiSignal         *string  `json:"wifi_signal"`
	GcodeFile          *string  `json:"gcode_file"`
	SubtaskName        *string  `json:"subtask_name"`

	// Device carries the per-extruder readings on dual-nozzle variants.
	Device *ReportDevice `json:"device"`
}

// ReportDevice wraps hardware-level readings.
type ReportDevice struct {
	Extruder *ReportExtruder `json:"extruder"`
}

// ReportExtruder lists per-tool readings.
type ReportExtruder struct {
	Info []ExtruderInfo `json:"info"`
}

// ExtruderInfo is one tool's readings.
type ExtruderInfo struct {
	ID         *int     `json:"id"`
	Temp       *float64 `json:"temp"`
	TargetTemp *float64 `json:"tar_temp"`
}

// ReportInfo is the firmware/module information payload.
type ReportInfo struct {
	Command string   `json:"command"`
	Modules []Module `json:"module"`
}

// Module describes one firmware module.
type Module struct {
	Name     string `json:"name"`
	HwVer    string `json:"hw_ver"`
	SwVer    string `json:"sw_ver"`
	SerialNo string `json:"sn"`
}
