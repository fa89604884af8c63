// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// github.com/tve/loralink is a two-node LoRa telemetry link: one node samples environmental
// sensors and transmits readings through an SX1276 radio, the other receives and decodes them.
// It uses periph for the low level access to the SPI bus, I2C bus and gpio pins. The radio driver
// is in sx1276, the frame format in telemetry, and the send and receive loops in link. The
// binaries for the two nodes and simple hardware checks are in the cmd directory tree.
package loralink
