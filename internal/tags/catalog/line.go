package catalog

import tags "linesim/internal/tags/domain"

// Tag paths of the blow-moulding and filling line.
const (
	MMAState             = "MMA.State"
	MMASpeed             = "MMA.Speed"
	MMATemperature       = "MMA.Temperature"
	MMAPressure          = "MMA.Pressure"
	MMATotalProduction   = "MMA.TotalProduction"
	MMAFaultRoutine      = "MMA.FaultRoutine"
	MMAManualOverride    = "MMA.ManualOverride"
	MMAAirDehumidifier   = "MMA.AirDehumidifier"
	MMAGuardDoor1        = "MMA.GuardDoor1"
	MMALevelLT100        = "MMA.LevelLT100"
	MMAContainerTransfer = "MMA.ContainerTransfer"
	MMACapFeedUnit       = "MMA.CapFeedUnit"
	MMAActiveAlarms      = "MMA.ActiveAlarms"
	MMAWarningCount      = "MMA.WarningCount"
	MMAFaultCount        = "MMA.FaultCount"

	MMAMotorProtector100   = "MMA.MotorProtector100"
	MMAMotorProtector101   = "MMA.MotorProtector101"
	MMAMotorProtector103   = "MMA.MotorProtector103"
	MMAESTOPTriggered      = "MMA.ESTOPTriggered"
	MMALevelTooHighLT100   = "MMA.LevelTooHighLT100"
	MMAGuardDoorOpen1      = "MMA.GuardDoorOpen1"
	MMAOperatorPanelAccess = "MMA.OperatorPanelAccess"
	MMAGuardDoorReset      = "MMA.GuardDoorReset"

	BASBCMServer     = "BAS.BCMServer"
	BASCommHealth    = "BAS.CommHealth"
	BASNetworkErrors = "BAS.NetworkErrors"
	BASPowerLoss     = "BAS.PowerLoss"
	BASProfibusFault = "BAS.ProfibusFault"

	SDCPowerSupply   = "SDC.PowerSupply"
	SDCServoDrive    = "SDC.ServoDrive"
	SDCBrakeTorque   = "SDC.BrakeTorque"
	SDCSafetyCircuit = "SDC.SafetyCircuit"

	SBCStretchDrive12 = "SBC.StretchDrive12"
	SBCStretchDrive13 = "SBC.StretchDrive13"
	SBCStretchDrive14 = "SBC.StretchDrive14"
	SBCPositionDev    = "SBC.PositionDev"

	BCMServerConn   = "BCM.ServerConn"
	BCMDataRate     = "BCM.DataRate"
	BCMMessageQueue = "BCM.MessageQueue"

	ProcessLineState    = "Process.LineState"
	ProcessOEE          = "Process.OEE"
	ProcessAvailability = "Process.Availability"
	ProcessPerformance  = "Process.Performance"
	ProcessQuality      = "Process.Quality"
	ProcessDowntime     = "Process.Downtime"
)

// Line state labels.
const (
	StateRunning = "RUNNING"
	StateStopped = "STOPPED"
	StateWarning = "WARNING"
	StateFault   = "FAULT"
)

// Line returns the built-in address space with nominal values.
// Tags computed by the simulator are read-only for external clients.
func Line() []tags.Definition {
	return []tags.Definition{
		ro(MMAState, "Machine State", tags.String(StateStopped)),
		ro(MMASpeed, "Production Speed", tags.Int(0)),
		ro(MMATemperature, "Temperature", tags.Float(20.0)),
		ro(MMAPressure, "System Pressure", tags.Float(6.0)),
		ro(MMATotalProduction, "Total Production", tags.Int(0)),
		rw(MMAFaultRoutine, "Fault Routine Started", tags.Bool(false)),
		rw(MMAManualOverride, "Manual Override Active", tags.Bool(false)),
		rw(MMAAirDehumidifier, "Air Dehumidifier Ready", tags.Bool(true)),
		rw(MMAGuardDoor1, "Guard Door 1 Closed", tags.Bool(true)),
		rw(MMALevelLT100, "Level LT100", tags.Float(50.0)),
		rw(MMAContainerTransfer, "Container Transfer OK", tags.Bool(true)),
		rw(MMACapFeedUnit, "Cap Feed Unit Ready", tags.Bool(true)),
		ro(MMAActiveAlarms, "Active Alarm Count", tags.Int(0)),
		ro(MMAWarningCount, "Warning Count", tags.Int(0)),
		ro(MMAFaultCount, "Fault Count", tags.Int(0)),
		rw(MMAMotorProtector100, "Motor Protector 100", tags.Bool(false)),
		rw(MMAMotorProtector101, "Motor Protector 101", tags.Bool(false)),
		rw(MMAMotorProtector103, "Motor Protector 103", tags.Bool(false)),
		rw(MMAESTOPTriggered, "ESTOP Triggered", tags.Bool(false)),
		rw(MMALevelTooHighLT100, "Level Too High LT100", tags.Bool(false)),
		rw(MMAGuardDoorOpen1, "Guard Door Open 1", tags.Bool(false)),
		rw(MMAOperatorPanelAccess, "Operator Panel Access", tags.Bool(false)),
		rw(MMAGuardDoorReset, "Guard Door Reset", tags.Bool(false)),

		rw(BASBCMServer, "BCM Server Status", tags.String("ONLINE")),
		rw(BASCommHealth, "Communication Health", tags.Int(100)),
		rw(BASNetworkErrors, "Network Error Count", tags.Int(0)),
		rw(BASPowerLoss, "Power Loss", tags.Bool(false)),
		rw(BASProfibusFault, "Profibus Fault", tags.Bool(false)),

		rw(SDCPowerSupply, "Power Supply Status", tags.String("OK")),
		rw(SDCServoDrive, "Servo Drive Status", tags.String("OK")),
		rw(SDCBrakeTorque, "Service Brake Torque", tags.Float(100.0)),
		rw(SDCSafetyCircuit, "Safety Circuit OK", tags.Bool(true)),

		rw(SBCStretchDrive12, "Stretch Drive Station 12", tags.Float(0)),
		rw(SBCStretchDrive13, "Stretch Drive Station 13", tags.Float(0)),
		rw(SBCStretchDrive14, "Stretch Drive Station 14", tags.Float(0)),
		rw(SBCPositionDev, "Position Deviation", tags.Float(0)),

		rw(BCMServerConn, "Server Connection", tags.String("CONNECTED")),
		rw(BCMDataRate, "Data Exchange Rate", tags.Int(1000)),
		rw(BCMMessageQueue, "Message Queue Size", tags.Int(0)),

		ro(ProcessLineState, "Line State", tags.String(StateRunning)),
		ro(ProcessOEE, "Overall Equipment Effectiveness", tags.Float(0)),
		ro(ProcessAvailability, "Availability", tags.Float(0)),
		ro(ProcessPerformance, "Performance", tags.Float(0)),
		ro(ProcessQuality, "Quality", tags.Float(0)),
		rw(ProcessDowntime, "Downtime (minutes)", tags.Int(0)),
	}
}

func ro(path, description string, value tags.Value) tags.Definition {
	return tags.Definition{Path: path, Description: description, Value: value}
}

func rw(path, description string, value tags.Value) tags.Definition {
	return tags.Definition{Path: path, Description: description, Value: value, Writable: true}
}
