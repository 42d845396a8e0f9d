// Package types defines the Album interface, the Item and FieldDefinition
// entities, the notification contract toward the rendering layer, engine
// configuration, and the standard errors shared by every storage component.
package types
