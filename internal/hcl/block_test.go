package hcl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseBlocks(t *testing.T, src string) []*TerraformBlock {
	t.Helper()
	result := ParseModule([]byte(src), "test.tf", ParserOptions{ErrorRecovery: true, ParseNestedBlocks: true}, nil)
	return result.Value
}

func TestParseModule_Resource(t *testing.T) {
	src := `
resource "aws_instance" "web" {
  ami           = "ami-123"
  instance_type = "t3.micro"

  tags = {
    Name = "web"
  }
}
`
	blocks := parseBlocks(t, src)
	require.Len(t, blocks, 1)

	b := blocks[0]
	require.Equal(t, BlockResource, b.BlockType)
	require.Equal(t, []string{"aws_instance", "web"}, b.Labels)
	require.Equal(t, []string{"ami", "instance_type", "tags"}, b.AttributeOrder)
	require.Equal(t, "ami-123", b.Attributes["ami"].StringValue)
}

func TestParseModule_ModuleWithDependsOn(t *testing.T) {
	src := `
module "vpc" {
  source = "./modules/vpc"
  depends_on = [aws_instance.web]
}
`
	blocks := parseBlocks(t, src)
	require.Len(t, blocks, 1)
	require.Equal(t, BlockModule, blocks[0].BlockType)
	require.Equal(t, []string{"vpc"}, blocks[0].Labels)

	dep := blocks[0].Attributes["depends_on"]
	require.Equal(t, ExprArray, dep.Kind)
	require.Len(t, dep.Elements, 1)
	require.Equal(t, []string{"aws_instance", "web"}, dep.Elements[0].Parts)
}

func TestParseModule_NestedBlocks(t *testing.T) {
	src := `
resource "aws_security_group" "web" {
  name = "web-sg"

  ingress {
    from_port = 80
    to_port   = 80
  }

  ingress {
    from_port = 443
    to_port   = 443
  }
}
`
	blocks := parseBlocks(t, src)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].NestedBlocks, 2)
	require.Equal(t, BlockType("ingress"), blocks[0].NestedBlocks[0].BlockType)
}

func TestParseModule_UnexpectedLabelCountIsRecoverableError(t *testing.T) {
	src := `
variable "a" "b" {
  default = 1
}
`
	result := ParseModule([]byte(src), "test.tf", ParserOptions{ErrorRecovery: true}, nil)
	require.NotEmpty(t, result.Errors)
	require.Len(t, result.Value, 1)
}

func TestParseModule_MultipleTopLevelBlocksPreserveOrder(t *testing.T) {
	src := `
variable "a" {}
variable "b" {}
variable "c" {}
`
	blocks := parseBlocks(t, src)
	require.Len(t, blocks, 3)
	require.Equal(t, []string{"a"}, blocks[0].Labels)
	require.Equal(t, []string{"b"}, blocks[1].Labels)
	require.Equal(t, []string{"c"}, blocks[2].Labels)
}

func TestParseModule_UnterminatedBlockRecovers(t *testing.T) {
	src := `
resource "aws_instance" "web" {
  ami = "ami-123"

variable "next" {}
`
	result := ParseModule([]byte(src), "test.tf", ParserOptions{ErrorRecovery: true}, nil)
	require.NotEmpty(t, result.Errors)
}

func TestParseModule_ExpressionCacheIsUsedWhenProvided(t *testing.T) {
	cache := NewExpressionCache(16)
	src := `
locals {
  a = merge(var.x, var.y)
}
`
	result := ParseModule([]byte(src), "test.tf", ParserOptions{}, cache)
	require.True(t, result.Success)
	require.Len(t, result.Value, 1)
	require.Equal(t, ExprFunction, result.Value[0].Attributes["a"].Kind)
}
