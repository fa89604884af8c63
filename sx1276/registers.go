// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1276

import "fmt"

// Register is the 7-bit address of an SX1276 LoRa-mode register. Bit 7 of the address byte sent
// on the wire selects the transfer direction and is never part of a Register value.
type Register uint8

const (
	RegFifo          Register = 0x00
	RegOpMode        Register = 0x01
	RegFrfMsb        Register = 0x06
	RegFrfMid        Register = 0x07
	RegFrfLsb        Register = 0x08
	RegPaConfig      Register = 0x09
	RegOcp           Register = 0x0B
	RegLna           Register = 0x0C
	RegFifoAddrPtr   Register = 0x0D
	RegFifoTxBase    Register = 0x0E
	RegFifoRxBase    Register = 0x0F
	RegFifoRxCurrent Register = 0x10
	RegIrqMask       Register = 0x11
	RegIrqFlags      Register = 0x12
	RegRxNbBytes     Register = 0x13
	RegModemStat     Register = 0x18
	RegPktSnr        Register = 0x19
	RegPktRssi       Register = 0x1A
	RegModemConfig1  Register = 0x1D
	RegModemConfig2  Register = 0x1E
	RegSymbTimeout   Register = 0x1F
	RegPreambleMsb   Register = 0x20
	RegPreambleLsb   Register = 0x21
	RegPayloadLength Register = 0x22
	RegMaxPayload    Register = 0x23
	RegModemConfig3  Register = 0x26
	RegSyncWord      Register = 0x39
	RegDioMapping1   Register = 0x40
	RegVersion       Register = 0x42
	RegPaDac         Register = 0x4D

	regLast Register = 0x7F
)

// Valid reports whether r fits in the 7-bit register address space.
func (r Register) Valid() bool { return r <= regLast }

func (r Register) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Reg(%#02x)", uint8(r))
}

var regNames = map[Register]string{
	RegFifo: "Fifo", RegOpMode: "OpMode", RegFrfMsb: "FrfMsb", RegFrfMid: "FrfMid",
	RegFrfLsb: "FrfLsb", RegPaConfig: "PaConfig", RegOcp: "Ocp", RegLna: "Lna",
	RegFifoAddrPtr: "FifoAddrPtr", RegFifoTxBase: "FifoTxBase", RegFifoRxBase: "FifoRxBase",
	RegFifoRxCurrent: "FifoRxCurrent", RegIrqMask: "IrqMask", RegIrqFlags: "IrqFlags",
	RegRxNbBytes: "RxNbBytes", RegModemStat: "ModemStat", RegPktSnr: "PktSnr",
	RegPktRssi: "PktRssi", RegModemConfig1: "ModemConfig1", RegModemConfig2: "ModemConfig2",
	RegSymbTimeout: "SymbTimeout", RegPreambleMsb: "PreambleMsb", RegPreambleLsb: "PreambleLsb",
	RegPayloadLength: "PayloadLength", RegMaxPayload: "MaxPayload",
	RegModemConfig3: "ModemConfig3", RegSyncWord: "SyncWord", RegDioMapping1: "DioMapping1",
	RegVersion: "Version", RegPaDac: "PaDac",
}

// Mode is an operating mode of the radio, i.e. the low 3 bits of RegOpMode.
type Mode uint8

const (
	ModeSleep   Mode = 0
	ModeStandby Mode = 1
	ModeTx      Mode = 3
	ModeRxCont  Mode = 5
)

// Valid reports whether m is one of the modes the driver uses.
func (m Mode) Valid() bool {
	switch m {
	case ModeSleep, ModeStandby, ModeTx, ModeRxCont:
		return true
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "sleep"
	case ModeStandby:
		return "standby"
	case ModeTx:
		return "tx"
	case ModeRxCont:
		return "rx-continuous"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

const (
	opModeLongRange = 0x80 // LoRa mode, can only be changed in sleep
	opModeLowFreq   = 0x08 // LF registers, for bands below 525Mhz
	opModeMask      = 0x07

	paBoost  = 0x80 // PA_BOOST pin instead of RFO
	paDacOff = 0x84 // default PA DAC
	paDac20  = 0x87 // +20dBm on PA_BOOST

	chipVersion = 0x12 // silicon revision reported by RegVersion
)

// IRQ flags in RegIrqFlags, all are write-1-to-clear.
const (
	IrqRxTimeout     = 1 << 7
	IrqRxDone        = 1 << 6
	IrqPayloadCrcErr = 1 << 5
	IrqValidHeader   = 1 << 4
	IrqTxDone        = 1 << 3
	IrqCadDone       = 1 << 2
	IrqFhssChange    = 1 << 1
	IrqCadDetected   = 1 << 0
)
