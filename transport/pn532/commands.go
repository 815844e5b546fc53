// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn532

// PN532 command codes. The response code is always the command plus one.
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// MIFARE Classic commands carried by InDataExchange.
const (
	mifareAuthA = 0x60
	mifareAuthB = 0x61
	mifareRead  = 0x30
	mifareWrite = 0xA0
)

const (
	// targetNumber is the logical number the PN532 gives the only target
	// listed by InListPassiveTarget.
	targetNumber = 0x01

	// brTy106TypeA selects 106 kbps ISO14443 Type A in InListPassiveTarget.
	brTy106TypeA = 0x00

	// samNormalMode, samTimeout and samUseIRQ configure the SAM to stay out
	// of the way: normal mode, 1 s timeout (unit 50 ms), IRQ pin driven.
	samNormalMode = 0x01
	samTimeout    = 0x14
	samUseIRQ     = 0x01

	// rfCfgMaxRetries is the RFConfiguration item holding MxRtyATR,
	// MxRtyPSL and MxRtyPassiveActivation.
	rfCfgMaxRetries = 0x05

	// DefaultPassiveActivationRetries bounds InListPassiveTarget to about
	// one second when no tag is in the field.
	DefaultPassiveActivationRetries byte = 0x0A

	// statusErrorMask selects the error code in an InDataExchange status;
	// the upper bits flag NAD and chaining.
	statusErrorMask = 0x3F

	statusTimeout    = 0x01
	statusAuthFailed = 0x14
)
